package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/KH1188/juliusos/internal/bootstrap"
	"github.com/KH1188/juliusos/internal/config"
	"github.com/KH1188/juliusos/internal/contextbuilder"
	"github.com/KH1188/juliusos/internal/recipe"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:     "julios",
		Short:   "julios - run recipes and inspect context from the command line",
		Version: Version,
	}

	rootCmd.AddCommand(recipeCmd(cfg))
	rootCmd.AddCommand(contextCmd(cfg))
	rootCmd.AddCommand(modelsCmd(cfg))
	rootCmd.AddCommand(healthCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func recipeCmd(cfg config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipe",
		Short: "Run or list agent recipes",
	}

	run := &cobra.Command{
		Use:   "run [name]",
		Short: "Run a recipe and print its JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			raw, _ := cmd.Flags().GetStringArray("param")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			params, err := parseParams(raw)
			if err != nil {
				return err
			}

			agent := bootstrap.NewAgent(cfg, nil)
			defer agent.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := agent.Recipes.Run(ctx, args[0], userID, params)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	run.Flags().Int64P("user", "u", cfg.DefaultUserID, "User id")
	run.Flags().StringArrayP("param", "p", nil, "Recipe parameter key=value (value may be JSON)")
	run.Flags().Duration("timeout", 5*time.Minute, "Overall timeout")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered recipes",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := bootstrap.NewAgent(cfg, nil)
			defer agent.Close()
			for _, n := range agent.Recipes.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.AddCommand(run, list)
	return cmd
}

func contextCmd(cfg config.AppConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Build and print the context snapshot for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetInt64("user")
			days, _ := cmd.Flags().GetInt("days")
			modules, _ := cmd.Flags().GetStringSlice("modules")

			agent := bootstrap.NewAgent(cfg, nil)
			defer agent.Close()

			snap := agent.Context.Build(cmd.Context(), userID, days, modules)
			if len(snap.Degraded) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "degraded modules: %s\n", strings.Join(snap.Degraded, ", "))
			}
			return printJSON(cmd, snap)
		},
	}
	cmd.Flags().Int64P("user", "u", cfg.DefaultUserID, "User id")
	cmd.Flags().IntP("days", "d", cfg.ContextWindowDays, "Window size in days")
	cmd.Flags().StringSliceP("modules", "m", nil, "Modules to include (default: "+strings.Join(contextbuilder.AllModules, ",")+")")
	return cmd
}

func modelsCmd(cfg config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models available on the model server",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := bootstrap.NewAgent(cfg, nil)
			defer agent.Close()
			for _, m := range agent.Model.ListModels(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func healthCmd(cfg config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check model server availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := bootstrap.NewAgent(cfg, nil)
			defer agent.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model:     %s (fallback %s)\n", cfg.OllamaModel, cfg.OllamaFallbackModel)
			if agent.Model.CheckHealth(cmd.Context()) {
				fmt.Fprintf(out, "Ollama:    OK (%s)\n", cfg.OllamaURL)
				return nil
			}
			fmt.Fprintf(out, "Ollama:    UNAVAILABLE (%s)\n", cfg.OllamaURL)
			return fmt.Errorf("model server unavailable")
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseParams 解析 key=value；value 是合法 JSON 时按 JSON 解码，否则作为字符串
func parseParams(raw []string) (recipe.Params, error) {
	params := recipe.Params{}
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", kv)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			params[k] = decoded
			continue
		}
		params[k] = v
	}
	return params, nil
}
