package commands

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/davack/slate/internal/blob"
	"github.com/davack/slate/internal/engine"
	"github.com/davack/slate/internal/printer"
	"github.com/davack/slate/pkg/boardstore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	createTitle       string
	createDescription string
	createComment     string
	createLabel       string
	createType        string
	createMediaURL    string
	createMediaFile   string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a content item in the pool",
	Long: `Create a content item in the holding pool.

The item needs a title, a label, a content type and a media asset. Pass the
asset either as an already-public URL (--media) or as a local file (--file),
which is uploaded to the configured blob store first.

Examples:
  slate create --title "Spring promo" --type photo --label ready_for_approval --media https://cdn.example.com/promo.jpg
  slate create --title "Launch reel" --type reel --label needs_revision --file ./launch.mp4`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createTitle, "title", "", "Item title (required)")
	createCmd.Flags().StringVar(&createDescription, "description", "", "Item description")
	createCmd.Flags().StringVar(&createComment, "comment", "", "Initial comment text field")
	createCmd.Flags().StringVar(&createLabel, "label", string(boardstore.LabelReadyForApproval), "Label: approved, needs_revision, ready_for_approval, scheduled")
	createCmd.Flags().StringVar(&createType, "type", "", "Content type: photo, reel, video, carousel (required)")
	createCmd.Flags().StringVar(&createMediaURL, "media", "", "Public URL of the media asset")
	createCmd.Flags().StringVar(&createMediaFile, "file", "", "Local media file to upload")
	createCmd.MarkFlagRequired("title")
	createCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cc, err := newCmdContext(ctx)
	if err != nil {
		return err
	}
	defer cc.Close()

	mediaURL := createMediaURL
	if mediaURL == "" && createMediaFile != "" {
		mediaURL, err = uploadMedia(ctx, cc, createMediaFile)
		if err != nil {
			return err
		}
	}
	if mediaURL == "" {
		return printer.Error(
			"No media asset",
			"Every item needs a media asset before it can exist in the pool.",
			[]string{"Pass --media <url> or --file <path>."},
		)
	}

	result := cc.engine.Create(ctx, engine.CreateInput{
		Title:       createTitle,
		Description: createDescription,
		Comment:     createComment,
		Label:       boardstore.Label(createLabel),
		ContentType: boardstore.ContentType(createType),
		MediaURL:    mediaURL,
	})
	if !result.OK {
		return printer.Error("Create failed", result.Message, nil)
	}

	printer.Success("%s\n", result.Message)
	printer.Info("  ID: %s\n", result.ItemID)
	return nil
}

// uploadMedia pushes a local file to the configured blob store and returns
// the durable public URL. The upload completes before the item is created,
// so no item is ever visible without a usable asset.
func uploadMedia(ctx context.Context, cc *cmdContext, path string) (string, error) {
	if cc.cfg.Media == nil {
		return "", printer.Error(
			"No blob store configured",
			"Uploading a local file requires a media section in slate.yml.",
			[]string{"Add the media section, or pass --media with an already-public URL."},
		)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	store, err := blob.NewMinio(ctx, blob.MinioOptions{
		Endpoint:  cc.cfg.Media.Endpoint,
		Bucket:    cc.cfg.Media.Bucket,
		AccessKey: cc.cfg.Media.AccessKey,
		SecretKey: cc.cfg.Media.SecretKey,
		UseSSL:    cc.cfg.Media.UseSSL,
	})
	if err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectPath := fmt.Sprintf("%s/%s/%s%s", cc.cfg.Project, cc.channel, uuid.New().String(), filepath.Ext(path))
	url, err := store.Upload(ctx, objectPath, f, info.Size(), contentType)
	if err != nil {
		return "", err
	}

	printer.Info("Uploaded %s\n", filepath.Base(path))
	return url, nil
}
