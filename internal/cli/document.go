package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docchat-be/internal/dto"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload documents into the session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUpload,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the session's documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete one document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the session's retrieval state",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document and the memory of the session",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(uploadCmd, listCmd, deleteCmd, reindexCmd, clearCmd)
}

func requireDocuments() error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	files := make([]dto.UploadFile, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, dto.UploadFile{Name: filepath.Base(path), Data: data})
	}

	res, err := documentService.Upload(context.Background(), session, files)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}

	for _, name := range res.Uploaded {
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "uploaded %s\n", name)
	}
	for _, f := range res.Failed {
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "skipped %s: %s\n", f.Name, f.Error)
	}
	cmd.Printf("%d document(s) uploaded to session %q\n", res.Count, session)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}

	res, err := documentService.List(context.Background(), session)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}

	if res.Count == 0 {
		cmd.Println("No documents uploaded.")
		return nil
	}
	for _, d := range res.Documents {
		cmd.Printf("%-40s %10d bytes  %s\n", d.Name, d.Size, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if err := documentService.Delete(context.Background(), session, args[0]); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	res, err := documentService.Reindex(context.Background(), session)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd, res)
	}
	cmd.Printf("%s retrieval ready over %d document(s)\n", res.Mode, res.Count)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	if err := requireDocuments(); err != nil {
		return err
	}
	if err := documentService.ClearSession(context.Background(), session); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "session %q cleared\n", session)
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
