package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/your-org/eventface/internal/facemodel"
	"github.com/your-org/eventface/internal/matcher"
	"github.com/your-org/eventface/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <selfie>",
	Short: "Find the photos of an event that contain the person in a selfie",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("event", "", "event id (required)")
	searchCmd.Flags().Float64("threshold", search.UseDefaultThreshold, "minimum similarity in [0,1]; negative uses the configured default")
	searchCmd.Flags().Bool("json", false, "print results as JSON")
	_ = searchCmd.MarkFlagRequired("event")
}

func runSearch(cmd *cobra.Command, args []string) error {
	eventID, _ := cmd.Flags().GetString("event")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	selfie, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	d, err := loadDeps()
	if err != nil {
		return err
	}
	defer d.Close()

	ex, closeModel, err := facemodel.Open(d.cfg.Extractor)
	if err != nil {
		return err
	}
	defer closeModel()

	svc := search.NewService(ex, matcher.New(d.db), d.cfg.Matching, d.cfg.Ingest.ExtractorTimeout)
	results, err := svc.FindMyPhotos(cmd.Context(), eventID, selfie, threshold)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("no matching photos")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MEDIA\tCONFIDENCE")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%.3f\n", r.MediaID, r.Confidence)
	}
	return w.Flush()
}
