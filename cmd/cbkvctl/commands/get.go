package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cbkv "github.com/cbkv-io/cbkv-go"
	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch a document by key",
	Long: `Fetch a document from the bucket's default collection.

Examples:
  # Fetch a document
  cbkvctl --nodes 127.0.0.1:11210 get user::42

  # Fetch and print as JSON
  cbkvctl --nodes 127.0.0.1:11210 -o json get user::42`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// getResult is the display shape of a successful Get, independent of the
// document's own structure.
type getResult struct {
	Key     string          `json:"key" yaml:"key"`
	Cas     uint64          `json:"cas" yaml:"cas"`
	Content json.RawMessage `json:"content" yaml:"content"`
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	bucket, cleanup, err := openBucket(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := bucket.DefaultCollection().Get(context.Background(), key, cbkv.GetOptions{})
	if err != nil {
		if kverrors.Kind(err) == kverrors.KindKeyNotFound {
			return fmt.Errorf("key %q not found", key)
		}
		return err
	}

	var raw []byte
	if err := res.Content(&raw); err != nil {
		return fmt.Errorf("decode content: %w", err)
	}

	result := getResult{Key: key, Cas: res.Cas, Content: raw}

	format, err := parseOutputFormat()
	if err != nil {
		return err
	}
	switch format {
	case formatJSON:
		return printJSON(os.Stdout, result)
	case formatYAML:
		return printYAML(os.Stdout, result)
	default:
		fmt.Printf("key:     %s\n", result.Key)
		fmt.Printf("cas:     %d\n", result.Cas)
		fmt.Printf("content: %s\n", string(result.Content))
		return nil
	}
}
