package main

import (
	stdLog "log"
	"os"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/joho/godotenv"

	"github.com/Astemirdum/library-lending/lending/app"
	"github.com/Astemirdum/library-lending/lending/config"
)

// @title       Library lending API
// @version     1.0
// @description Authorizes book loans and answers whether a book is lent.
// @BasePath    /
func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", err)
	}
	cfg := config.NewConfig(
		config.WithLogLevel(zapcore.InfoLevel),
		config.WithWriteTimeout(time.Minute),
	)

	if err := app.Run(cfg); err != nil {
		stdLog.Fatal("app.Run ", err)
	}
}
