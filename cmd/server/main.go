package main

import "contapyme/internal/app/server"

func main() {
	server.Run()
}
