package main

import "commhub_backend/internal/app"

func main() {
	app.Run()
}
