package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/panyam/fsl/cmd/fsl/commands"
)

func main() {
	envfile := ".env"
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: commands.LogLevel})
	if os.Getenv("FSL_ENV") == "dev" {
		envfile = ".env.dev"
		commands.LogLevel.Set(slog.LevelDebug)
		handler = NewPrettyHandler(os.Stderr, PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{
				Level: commands.LogLevel,
			},
		})
	}
	slog.SetDefault(slog.New(handler))

	if err := godotenv.Load(envfile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error loading env file", "file", envfile, "error", err)
	}
	commands.Execute()
}
