package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/jobhound/internal/common"
	"github.com/ternarybob/jobhound/internal/storage"
)

func main() {
	// Load configuration
	configPath := os.Getenv("JOBHOUND_CONFIG")
	if configPath == "" {
		configPath = "jobhound.toml"
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal console logger so stdio stays clean for the MCP protocol
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Storage opens the same Badger directory as the main service, so run
	// one or the other, not both
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer storageManager.Close()

	mcpServer := server.NewMCPServer(
		"jobhound",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createSearchJobsTool(), handleSearchJobs(storageManager, logger))
	mcpServer.AddTool(createGetJobTool(), handleGetJob(storageManager, logger))
	mcpServer.AddTool(createListMatchesTool(), handleListMatches(storageManager, logger))
	mcpServer.AddTool(createPipelineStatusTool(), handlePipelineStatus(storageManager, logger))

	// Blocks on stdio
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
