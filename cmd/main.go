package main

import (
	"github.com/corray333/coffeeshop/internal/app"
	"github.com/corray333/coffeeshop/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
