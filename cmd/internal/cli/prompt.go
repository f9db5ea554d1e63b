package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"listinggen/cmd/internal/prompt"

	"github.com/spf13/cobra"
)

func newPromptCmd() *cobra.Command {
	req := prompt.Defaults()
	var fromFile string

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Compile a listing request into the model prompt",
		Long:  "Validates a listing request built from flags (or a JSON file, - for stdin) and prints the prompt sent to the model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fromFile != "" {
				loaded, err := readRequest(cmd.InOrStdin(), fromFile)
				if err != nil {
					return err
				}
				req = loaded
			}

			if err := req.Validate(); err != nil {
				var ve *prompt.ValidationError
				if errors.As(err, &ve) {
					for _, f := range ve.Fields {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", f.Field, f.Problem)
					}
				}
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), prompt.Compile(req))
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&fromFile, "file", "f", "", "Read the request as JSON from a file (- for stdin)")
	f.StringVar(&req.Address, "address", req.Address, "Property address")
	f.IntVar(&req.Bedrooms, "bedrooms", req.Bedrooms, "Bedrooms (0 for studio)")
	f.IntVar(&req.Bathrooms, "bathrooms", req.Bathrooms, "Bathrooms")
	f.StringVar(&req.PropertyType, "type", req.PropertyType, "Property type")
	f.StringVar(&req.Features, "features", req.Features, "Comma-separated features")
	f.StringVar(&req.Tone, "tone", req.Tone, "Tone")
	f.StringVar(&req.Audience, "audience", req.Audience, "Target audience")
	f.IntVar(&req.Length, "length", req.Length, "Approximate word count")
	f.StringVar(&req.Spelling, "spelling", req.Spelling, "UK or US")
	f.StringVar(&req.IncludeKeywords, "keywords", req.IncludeKeywords, "Comma-separated keywords to include")
	f.StringVar(&req.AvoidPhrases, "avoid", req.AvoidPhrases, "Comma-separated phrases to avoid")
	f.StringVar(&req.Format, "format", req.Format, "Output format")
	f.BoolVar(&req.AddTitle, "title", req.AddTitle, "Ask for a title")
	f.BoolVar(&req.AddCTA, "cta", req.AddCTA, "Ask for a call to action")
	f.BoolVar(&req.AddBullets, "bullets", req.AddBullets, "Ask for key feature bullets")
	return cmd
}

func readRequest(stdin io.Reader, path string) (prompt.ListingRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		fh, err := os.Open(path)
		if err != nil {
			return prompt.ListingRequest{}, err
		}
		defer fh.Close()
		r = fh
	}

	req := prompt.Defaults()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return prompt.ListingRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}
