package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/samgate/adapters/auth"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter config and template",
	Long: `Initialize samgate with a starter configuration.

This will:
  1. Ask for your template path
  2. Ask where your function containers listen
  3. Create the configuration file
  4. Create a starter template (if the path does not exist yet)

Examples:
  samgate init
  samgate init --template template.yaml --port 3000 --non-interactive`,
	RunE: runInit,
}

var (
	initTemplate       string
	initPort           int
	initEndpoint       string
	initJWT            bool
	initNonInteractive bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initTemplate, "template", "template.yaml", "template file path")
	initCmd.Flags().IntVar(&initPort, "port", 3000, "server port")
	initCmd.Flags().StringVar(&initEndpoint, "endpoint", "", "base URL of a function container serving every handler")
	initCmd.Flags().BoolVar(&initJWT, "jwt", false, "enable JWT auth with a generated secret")
	initCmd.Flags().BoolVar(&initNonInteractive, "non-interactive", false, "run without prompts")
}

func runInit(cmd *cobra.Command, args []string) error {
	fmt.Println("Welcome to samgate!")
	fmt.Println()

	// Check if config already exists
	if _, err := os.Stat(cfgFile); err == nil {
		fmt.Printf("Configuration file already exists: %s\n", cfgFile)
		if initNonInteractive || !confirm("Overwrite?") {
			fmt.Println("Aborted.")
			return nil
		}
	}

	reader := bufio.NewReader(os.Stdin)

	templatePath := initTemplate
	if !initNonInteractive {
		templatePath = prompt(reader, "Template path", initTemplate)
	}

	endpoint := initEndpoint
	if !initNonInteractive && endpoint == "" {
		endpoint = prompt(reader, "Function container base URL (empty to fill in later)", "")
	}

	jwtSecret := ""
	if initJWT {
		jwtSecret = auth.GenerateSecret()
	}

	configContent := generateConfig(templatePath, initPort, endpoint, jwtSecret)
	if err := os.WriteFile(cfgFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("\n%s Generated %s\n", checkMark, cfgFile)

	// Starter template, unless one already exists
	if _, err := os.Stat(templatePath); os.IsNotExist(err) {
		if err := os.WriteFile(templatePath, []byte(starterTemplate), 0644); err != nil {
			return fmt.Errorf("failed to write template: %w", err)
		}
		fmt.Printf("%s Generated starter template %s\n", checkMark, templatePath)
	} else {
		fmt.Printf("%s Using existing template %s\n", checkMark, templatePath)
	}

	if jwtSecret != "" {
		fmt.Println()
		fmt.Println("JWT secret (save this, shown once):")
		fmt.Printf("  %s\n", jwtSecret)
	}

	fmt.Println()
	fmt.Println("Run 'samgate serve' to start the gateway.")
	fmt.Println()
	fmt.Println("Access points:")
	fmt.Printf("  API:     http://localhost:%d/\n", initPort)
	fmt.Printf("  Health:  http://localhost:%d/healthz\n", initPort)
	fmt.Printf("  Docs:    http://localhost:%d/_samgate/docs/\n", initPort)

	return nil
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("? %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("? %s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func confirm(message string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("? %s [y/N]: ", message)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

func generateConfig(templatePath string, port int, endpoint, jwtSecret string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `# Samgate Configuration
# Generated by 'samgate init'

server:
  host: "0.0.0.0"
  port: %d

template:
  path: "%s"
  # stage: "dev"
  # gateway_id: "MyApi"
  # parameters:
  #   Environment: "local"
  watch: true

functions:
  timeout: 30s
`, port, templatePath)

	if endpoint != "" {
		fmt.Fprintf(&b, `  endpoints:
    # Keys are handler references or dotted prefixes of them; the
    # longest matching prefix wins.
    "src.handlers": "%s"
`, endpoint)
	} else {
		b.WriteString(`  # endpoints:
  #   "src.handlers": "http://localhost:9001"
`)
	}

	if jwtSecret != "" {
		fmt.Fprintf(&b, `
auth:
  mode: jwt
  jwt_secret: "%s"
`, jwtSecret)
	}

	b.WriteString(`
cache:
  backend: memory
  ttl: 24h

docs:
  enabled: true

metrics:
  enabled: true

logging:
  level: info
  format: console
`)

	return b.String()
}

const starterTemplate = `AWSTemplateFormatVersion: '2010-09-09'
Transform: AWS::Serverless-2016-10-31
Description: Starter API generated by samgate init

Globals:
  Function:
    Runtime: python3.11
    Timeout: 10

Resources:
  HelloFunction:
    Type: AWS::Serverless::Function
    Properties:
      CodeUri: src/handlers
      Handler: app.handler
      Events:
        Hello:
          Type: Api
          Properties:
            Path: /hello
            Method: get
`
