package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFile(t *testing.T) {
	originalCfgFile := cfgFile
	defer func() {
		cfgFile = originalCfgFile
	}()

	tests := []struct {
		name     string
		cfgValue string
		want     string
	}{
		{name: "default config file", cfgValue: "modlens.yaml", want: "modlens.yaml"},
		{name: "custom config file", cfgValue: "/path/to/custom.yaml", want: "/path/to/custom.yaml"},
		{name: "config file with spaces", cfgValue: "/path/to/my config.yaml", want: "/path/to/my config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.cfgValue
			assert.Equal(t, tt.want, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	originalLogLevel, originalLogFormat := logLevel, logFormat
	originalSample, originalVerify := sampleDB, verifyRollback
	defer func() {
		logLevel, logFormat = originalLogLevel, originalLogFormat
		sampleDB, verifyRollback = originalSample, originalVerify
	}()

	logLevel = "debug"
	logFormat = "json"
	sampleDB = "/data/DebugGameplay.sqlite"
	verifyRollback = true

	assert.Equal(t, CLIOverrides{
		LogLevel:       "debug",
		LogFormat:      "json",
		Sample:         "/data/DebugGameplay.sqlite",
		VerifyRollback: true,
	}, GetCLIOverrides())
}

func TestRootCommandFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"config", "c", "modlens.yaml"},
		{"log-level", "", ""},
		{"log-format", "", ""},
		{"sample", "", ""},
		{"verify-rollback", "", "false"},
		{"no-color", "", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := flags.Lookup(tt.name)
			if assert.NotNil(t, flag) {
				assert.Equal(t, tt.shorthand, flag.Shorthand)
				assert.Equal(t, tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestSubcommandsAreRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"schema", "check", "diff", "graph", "version"} {
		assert.True(t, names[want], "%s command should be added to root command", want)
	}
}

func TestCommandStructure(t *testing.T) {
	for _, c := range []struct {
		name   string
		hasRun bool
	}{
		{"schema", schemaCmd.RunE != nil},
		{"check", checkCmd.RunE != nil},
		{"diff", diffCmd.RunE != nil},
		{"graph", graphCmd.RunE != nil},
	} {
		assert.True(t, c.hasRun, "%s should have RunE", c.name)
	}

	variant := diffCmd.Flags().Lookup("variant")
	if assert.NotNil(t, variant) {
		assert.Equal(t, "V", variant.Shorthand)
		assert.Contains(t, variant.Annotations, "cobra_annotation_bash_completion_one_required_flag")
	}
	assert.NotNil(t, checkCmd.Flags().Lookup("format"))
	assert.NotNil(t, graphCmd.Flags().Lookup("table"))
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}
