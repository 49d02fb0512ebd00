// Command coursebot runs the course storefront bot and its payment webhook server.
package main

import (
	"log"

	"github.com/m3rciful/coursebot/core/buildinfo"
	"github.com/m3rciful/coursebot/core/cmd"
	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/shop/app"
)

func main() {
	log.Printf("coursebot %s", buildinfo.String())

	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
		ShutdownLogger: logger.Shutdown,
	})
	if err != nil {
		log.Fatal(err)
	}
}
