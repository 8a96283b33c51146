package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/urfave/cli/v3"
)

// APICall makes a direct authenticated request; the HTTP method is the subcommand name.
func (r *Runner) APICall(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path is required", shared.ErrMissingArgument)
	}

	query, err := parseQuery(cmd.StringSlice("query"))
	if err != nil {
		return err
	}

	opts := services.CallOptions{Method: strings.ToUpper(cmd.Name), Query: query}

	if data := cmd.String("data"); data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("%w: data is not valid JSON", shared.ErrInvalidInput)
		}
		opts.Body = json.RawMessage(data)
	}

	app, err := r.boot()
	if err != nil {
		return err
	}

	r.logger.Info("API request", "method", opts.Method, "path", path)

	resp, err := app.Client.Call(ctx, path, opts)
	if err != nil {
		return err
	}

	if resp.Empty() {
		return r.writePlain("✓ %d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if !json.Valid(resp.Body) {
		if err := r.writeBytes(resp.Body); err != nil {
			return err
		}
		return r.writePlain("\n")
	}
	return r.writeJSON(resp.Body, cmd.Bool("pretty"))
}

// parseQuery turns key=value pairs into query values.
func parseQuery(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: query %q must be key=value", shared.ErrInvalidArgument, pair)
		}
		values.Add(key, value)
	}
	return values, nil
}
