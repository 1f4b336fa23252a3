package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"studio/internal/composer"
	"studio/internal/infra"
	"studio/internal/inpaint"
	"studio/internal/tui"
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("STUDIO_API_URL", composer.DefaultHost.String()), "generation backend base URL")
	inpaintURL := flag.String("inpaint", "", "inpaint endpoint (default <api>/inpaint)")
	workflow := flag.String("workflow", inpaint.DefaultWorkflowPath, "inpaint workflow template, a path or http(s) URL")
	flag.Parse()

	logger, closer, err := infra.NewFileLogger(envOr("STUDIO_LOG", "studio.log"), envOr("APP_ENV", "development"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	host, err := composer.ParseHost(*apiURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -api %q: %v\n", *apiURL, err)
		os.Exit(2)
	}
	endpoint := *inpaintURL
	if endpoint == "" {
		endpoint = host.Join("/inpaint")
	}

	alerts := tui.NewAlerts()
	client := &http.Client{}
	model := tui.New(tui.Options{
		Composer: composer.New(composer.Options{
			Backend:  composer.NewClient(host, client),
			Notifier: alerts,
			Logger:   logger,
		}),
		Submitter: inpaint.New(inpaint.Options{
			Endpoint:   endpoint,
			Workflow:   *workflow,
			HTTPClient: client,
			Logger:     logger,
		}),
		Alerts: alerts,
		Logger: logger,
		APIURL: host.String(),
	})

	logger.Info().Str("api", host.String()).Str("inpaint", endpoint).Msg("studio starting")
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("ui exited")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
