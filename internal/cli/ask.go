package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docchat-be/internal/dto"
	"docchat-be/internal/service"
)

var askStream bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the session's documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "print the answer as it is generated")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	req := &dto.ChatRequest{Question: strings.Join(args, " "), Stream: askStream}
	if !askStream || jsonOutput {
		res, err := chatService.Ask(ctx, session, req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, res)
		}
		cmd.Println(res.Answer)
		printSources(cmd, res.Files, res.Truncated)
		return nil
	}

	stream, err := chatService.AskStream(ctx, session, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	out := cmd.OutOrStdout()
	for stream.Next() {
		_, _ = out.Write([]byte(stream.Chunk()))
	}
	cmd.Println()
	if err := stream.Err(); err != nil {
		return service.UserFacingError(err)
	}
	printSources(cmd, stream.Files, stream.Truncated)
	return nil
}

func printSources(cmd *cobra.Command, files []string, truncated bool) {
	if len(files) > 0 {
		color.New(color.FgCyan).Fprintf(cmd.OutOrStdout(), "sources: %s\n", strings.Join(files, ", "))
	}
	if truncated {
		color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "note: some documents were left out to fit the context limit")
	}
}
