// Package main contains the cli implementation of the tool. It uses cobra
// package for cli tool implementation.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"queryguard/internal/config"
	"queryguard/internal/core"
	"queryguard/internal/pipeline"
	"queryguard/internal/policy"
	"queryguard/internal/prompt"
)

type compileFlags struct {
	schemaFile  string
	profileFile string
	policyFile  string
	planFile    string
}

type promptFlags struct {
	schemaFile  string
	profileFile string
	policyFile  string
	question    string
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "queryguard",
		Short: "Policy-enforcing query planner and compiler",
	}

	rootCmd.AddCommand(compileCmd())
	rootCmd.AddCommand(promptCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func compileCmd() *cobra.Command {
	flags := &compileFlags{}
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Validate, apply policy to, and compile a QueryPlan JSON document into SQL",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runCompile(flags)
		},
	}

	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "Path to the schema TOML file")
	cmd.Flags().StringVar(&flags.profileFile, "profile", "", "Path to the dialect profile TOML file")
	cmd.Flags().StringVar(&flags.policyFile, "policy", "", "Path to the policy TOML file (defaults applied if omitted)")
	cmd.Flags().StringVar(&flags.planFile, "plan", "", "Path to the QueryPlan JSON file")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

func runCompile(flags *compileFlags) error {
	snapshot, err := config.LoadSchema(flags.schemaFile)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	profile, err := config.LoadDialectProfile(flags.profileFile)
	if err != nil {
		return fmt.Errorf("failed to load dialect profile: %w", err)
	}

	policyCfg, err := loadPolicyOrDefault(flags.policyFile)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}

	planJSON, err := os.ReadFile(flags.planFile)
	if err != nil {
		return fmt.Errorf("failed to read plan: %w", err)
	}

	out, err := pipeline.ValidateAndCompile(planJSON, snapshot, profile, policyCfg)
	if err != nil {
		return emitPipelineError(err)
	}

	return writeJSON(map[string]any{
		"sql":             out.SQL,
		"params":          out.Params,
		"required_params": out.RequiredParams,
	})
}

func promptCmd() *cobra.Command {
	flags := &promptFlags{}
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render the system and user prompt components for a planning request",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runPrompt(flags)
		},
	}

	cmd.Flags().StringVar(&flags.schemaFile, "schema", "", "Path to the schema TOML file")
	cmd.Flags().StringVar(&flags.profileFile, "profile", "", "Path to the dialect profile TOML file")
	cmd.Flags().StringVar(&flags.policyFile, "policy", "", "Path to the policy TOML file, summarized for the planner's context")
	cmd.Flags().StringVar(&flags.question, "question", "", "The natural-language question to hand to the planner")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("profile")
	_ = cmd.MarkFlagRequired("question")

	return cmd
}

func runPrompt(flags *promptFlags) error {
	snapshot, err := config.LoadSchema(flags.schemaFile)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	profile, err := config.LoadDialectProfile(flags.profileFile)
	if err != nil {
		return fmt.Errorf("failed to load dialect profile: %w", err)
	}

	policySummary := ""
	if flags.policyFile != "" {
		policyCfg, err := config.LoadPolicy(flags.policyFile)
		if err != nil {
			return fmt.Errorf("failed to load policy: %w", err)
		}
		policySummary = summarizePolicy(policyCfg)
	}

	system, user := prompt.BuildComponents(snapshot, profile, flags.question, policySummary)

	return writeJSON(map[string]any{
		"system": system,
		"user":   user,
	})
}

// loadPolicyOrDefault returns config.DecodePolicy's built-in defaults (no
// denied columns, no required bindings, a 1000-row LIMIT) when the caller
// does not supply a policy file, matching policy.Apply's no-op behavior
// for a table with no entry in Config.Tables.
func loadPolicyOrDefault(path string) (*policy.Config, error) {
	if path == "" {
		return config.DecodePolicy(strings.NewReader(""))
	}
	return config.LoadPolicy(path)
}

func summarizePolicy(cfg *policy.Config) string {
	var sb strings.Builder
	for table, tp := range cfg.Tables {
		for column, param := range tp.ParamBoundColumns {
			fmt.Fprintf(&sb, "%s.%s is always filtered to the caller-supplied %s parameter\n", table, column, param)
		}
		for column := range tp.DeniedColumns {
			fmt.Fprintf(&sb, "%s.%s may never be referenced\n", table, column)
		}
	}
	return sb.String()
}

// errorResponder is implemented by every core leaf error type
// (ParseError, ValidationError, CompilationError, ProfileConfigError).
type errorResponder interface {
	ToErrorResponse() core.ErrorResponse
}

// emitPipelineError writes the pipeline's rejection as the same
// {code, message, details} shape a caller embedding this package would
// see from errors.As, then returns a plain error so cobra exits non-zero.
func emitPipelineError(err error) error {
	if responder, ok := err.(errorResponder); ok {
		if jsonErr := writeJSON(responder.ToErrorResponse()); jsonErr != nil {
			return jsonErr
		}
		return err
	}
	return err
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
