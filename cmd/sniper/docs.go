package main

//go:generate swag init -g cmd/sniper/docs.go -o docs -d ../../

// @title           solsniper API
// @version         0.1.0
// @description     Discovery, admission, position lifecycle and wallet batch controls.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
