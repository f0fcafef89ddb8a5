// Package cli is a terminal front end for the document chat services. It
// drives the same services as the HTTP API, in process.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docchat-be/internal/service"
)

var (
	session    string
	jsonOutput bool

	documentService service.IDocumentService
	chatService     service.IChatService
)

var rootCmd = &cobra.Command{
	Use:           "docchat",
	Short:         "Ask questions about your documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&session, "session", "s", "default", "session whose documents are used")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

// SetServices injects the services every command runs against.
func SetServices(docs service.IDocumentService, chat service.IChatService) {
	documentService = docs
	chatService = chat
}

// Execute runs the root command and prints a failure in red.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		color.New(color.FgRed).Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}
