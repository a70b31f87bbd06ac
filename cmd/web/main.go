package main

import "travelwild_backend/internal/app"

func main() {
	app.Run()
}
