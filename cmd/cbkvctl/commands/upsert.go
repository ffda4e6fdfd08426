package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	cbkv "github.com/cbkv-io/cbkv-go"
)

var upsertExpiry time.Duration

var upsertCmd = &cobra.Command{
	Use:   "upsert <key> <json-value>",
	Short: "Upsert a document by key",
	Long: `Upsert a JSON document into the bucket's default collection,
creating it if absent or replacing its content if present.

Examples:
  # Upsert a document
  cbkvctl --nodes 127.0.0.1:11210 upsert user::42 '{"name":"ada"}'

  # Upsert with a 60 second expiry
  cbkvctl --nodes 127.0.0.1:11210 upsert user::42 '{"name":"ada"}' --expiry 60s`,
	Args: cobra.ExactArgs(2),
	RunE: runUpsert,
}

func init() {
	upsertCmd.Flags().DurationVar(&upsertExpiry, "expiry", 0, "Document expiry (0 means never)")
}

func runUpsert(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if !json.Valid([]byte(value)) {
		return fmt.Errorf("value is not valid JSON: %s", value)
	}

	bucket, cleanup, err := openBucket(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := bucket.DefaultCollection().Upsert(context.Background(), key, json.RawMessage(value), cbkv.UpsertOptions{
		Expiry: upsertExpiry,
	})
	if err != nil {
		return err
	}

	format, err := parseOutputFormat()
	if err != nil {
		return err
	}
	result := struct {
		Key string `json:"key" yaml:"key"`
		Cas uint64 `json:"cas" yaml:"cas"`
	}{Key: key, Cas: res.Cas}

	switch format {
	case formatJSON:
		return printJSON(os.Stdout, result)
	case formatYAML:
		return printYAML(os.Stdout, result)
	default:
		fmt.Printf("key: %s\ncas: %d\n", result.Key, result.Cas)
		return nil
	}
}
