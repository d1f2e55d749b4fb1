package main

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to set up logger: %w", err))
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var runErr error
	switch os.Args[1] {
	case "validate":
		runErr = runValidate(os.Args[2:])
	case "synthesize":
		runErr = runSynthesize(os.Args[2:])
	case "layout":
		runErr = runLayout(os.Args[2:])
	case "init-db":
		runErr = runInitDB(os.Args[2:])
	case "health":
		runErr = runHealth(os.Args[2:])
	case "export":
		runErr = runExport(os.Args[2:])
	case "import":
		runErr = runImport(os.Args[2:])
	default:
		sugar.Errorf("unknown command %q", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if runErr != nil {
		sugar.Fatalf("%s: %v", os.Args[1], runErr)
	}
}

func printUsage() {
	logger := zap.S()
	logger.Info("Usage: openvocab-tools <command> [options]")
	logger.Info("")
	logger.Info("Commands:")
	logger.Info("  validate     Check vocabularies and associations of a config directory")
	logger.Info("  synthesize   Print the virtual fields of a host bundle as JSON")
	logger.Info("  layout       Place virtual fields into a JSON form layout")
	logger.Info("  init-db      Create PostgreSQL configuration tables")
	logger.Info("  health       Check the PostgreSQL store and the snapshot bucket")
	logger.Info("  export       Upload a config directory snapshot to S3")
	logger.Info("  import       Restore a config directory from an S3 snapshot")
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvDefaultInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}
