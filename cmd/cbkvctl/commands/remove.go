package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cbkv "github.com/cbkv-io/cbkv-go"
	"github.com/cbkv-io/cbkv-go/pkg/kverrors"
)

var removeCmd = &cobra.Command{
	Use:   "remove <key>",
	Short: "Remove a document by key",
	Long: `Remove a document from the bucket's default collection.

Examples:
  cbkvctl --nodes 127.0.0.1:11210 remove user::42`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	key := args[0]

	bucket, cleanup, err := openBucket(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := bucket.DefaultCollection().Remove(context.Background(), key, cbkv.RemoveOptions{}); err != nil {
		if kverrors.Kind(err) == kverrors.KindKeyNotFound {
			return fmt.Errorf("key %q not found", key)
		}
		return err
	}

	format, err := parseOutputFormat()
	if err != nil {
		return err
	}
	result := struct {
		Key     string `json:"key" yaml:"key"`
		Removed bool   `json:"removed" yaml:"removed"`
	}{Key: key, Removed: true}

	switch format {
	case formatJSON:
		return printJSON(os.Stdout, result)
	case formatYAML:
		return printYAML(os.Stdout, result)
	default:
		fmt.Printf("removed %s\n", key)
		return nil
	}
}
