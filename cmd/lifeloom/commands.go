package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lifeloom/lifeloom/internal/config"
)

type projectView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	CurrentPhase string `json:"current_phase"`
	AgeBracket   string `json:"age_bracket"`
	Progress     int    `json:"progress"`
	Phases       []struct {
		Phase    string `json:"phase"`
		Label    string `json:"label"`
		AgeRange string `json:"age_range"`
		Renamed  bool   `json:"renamed"`
		Current  bool   `json:"current"`
	} `json:"phases"`
	CreatedAt string `json:"created_at"`
}

type snippetView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Phase        string `json:"phase"`
	Theme        string `json:"theme"`
	DisplayOrder int    `json:"display_order"`
	IsLocked     bool   `json:"is_locked"`
}

func printSnippets(snippets []snippetView) {
	if len(snippets) == 0 {
		fmt.Println("No snippets found.")
		return
	}
	for _, s := range snippets {
		lock := " "
		if s.IsLocked {
			lock = colorize(colorYellow, "🔒")
		}
		fmt.Printf("%s %s %s [%s/%s]\n", lock,
			colorize(colorCyan, s.ID[:8]),
			colorize(colorBold, s.Title),
			s.Phase, s.Theme,
		)
		content := s.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		fmt.Printf("    %s\n", content)
	}
}

// --- project ---

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage interview projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects")
		if err != nil {
			return err
		}

		var projects []projectView
		if err := decodeJSON(resp, &projects); err != nil {
			return err
		}

		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}
		for _, p := range projects {
			fmt.Printf("%s  %s  %s  %s (%d%%)\n",
				colorize(colorCyan, p.ID[:8]),
				colorize(colorBold, p.Title),
				p.Status,
				p.CurrentPhase,
				p.Progress,
			)
		}
		return nil
	},
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new interview project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects", map[string]any{
			"title": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Created project %s (%s)", p.Title, p.ID)
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project's interview state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/projects/"+args[0])
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printStatus("Title", "%s", p.Title)
		printStatus("Status", "%s", p.Status)
		printStatus("Progress", "%d%%", p.Progress)
		if p.AgeBracket != "" {
			printStatus("Age bracket", "%s", p.AgeBracket)
		}
		for _, ph := range p.Phases {
			marker := "  "
			if ph.Current {
				marker = colorize(colorGreen, "▶ ")
			}
			label := ph.Label
			if ph.Renamed {
				label += " *"
			}
			if ph.AgeRange != "" {
				label += fmt.Sprintf(" (%s)", ph.AgeRange)
			}
			fmt.Printf("  %s%s\n", marker, label)
		}
		return nil
	},
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Rename a project",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/projects/"+args[0], map[string]any{
			"title": strings.Join(args[1:], " "),
		})
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Renamed project to %q", p.Title)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/projects/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted project %s", args[0])
		return nil
	},
}

func init() {
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectDeleteCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <project-id> <message>",
	Short: "Send one interview message and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ready, _ := cmd.Flags().GetBool("ready")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/chat", map[string]any{
			"message":         strings.Join(args[1:], " "),
			"ready_confirmed": ready,
		})
		if err != nil {
			return err
		}

		var result struct {
			Reply        string `json:"reply"`
			CurrentPhase string `json:"current_phase"`
			Progress     int    `json:"progress"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Reply)
		printStatus("Phase", "%s (%d%%)", result.CurrentPhase, result.Progress)
		return nil
	},
}

func init() {
	chatCmd.Flags().Bool("ready", false, "signal that the subject confirmed they are ready to begin")
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary <project-id>",
	Short: "Summarize the interview, optionally per chapter",
	Long: `Summarize the interview, optionally per chapter.

Examples:
  lifeloom summary <id>
  lifeloom summary <id> --phase CHILDHOOD --phase ADOLESCENCE`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		phases, _ := cmd.Flags().GetStringSlice("phase")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/summary", map[string]any{
			"phases": phases,
		})
		if err != nil {
			return err
		}

		var result struct {
			Summary string   `json:"summary"`
			Phases  []string `json:"phases_summarized"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Phases) > 0 {
			printStatus("Chapters", "%s", strings.Join(result.Phases, ", "))
		}
		fmt.Println(result.Summary)
		return nil
	},
}

func init() {
	summaryCmd.Flags().StringSlice("phase", nil, "chapter to cover (repeatable; default is the whole interview)")
}

// --- chapter ---

var chapterCmd = &cobra.Command{
	Use:   "chapter",
	Short: "Navigate and rename interview chapters",
}

var chapterAgeCmd = &cobra.Command{
	Use:   "age <project-id> <bracket>",
	Short: "Select the subject's age bracket and start the interview",
	Long: `Select the subject's age bracket and start the interview.

Brackets: under_18, 18_30, 31_45, 46_60, 61_plus`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/age", map[string]any{
			"age_bracket": args[1],
		})
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Interview started in %s", p.CurrentPhase)
		return nil
	},
}

var chapterAdvanceCmd = &cobra.Command{
	Use:   "advance <project-id>",
	Short: "Move the interview to the next chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/advance", nil)
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Now in %s (%d%%)", p.CurrentPhase, p.Progress)
		return nil
	},
}

var chapterJumpCmd = &cobra.Command{
	Use:   "jump <project-id> <phase>",
	Short: "Jump to a chapter of the interview",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/jump", map[string]any{
			"phase": args[1],
		})
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		printSuccess("Now in %s (%d%%)", p.CurrentPhase, p.Progress)
		return nil
	},
}

var chapterRenameCmd = &cobra.Command{
	Use:   "rename <project-id> <phase> <label>",
	Short: "Rename a chapter (empty label restores the default)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		label := strings.Join(args[2:], " ")
		path := "/projects/" + args[0] + "/chapters/" + args[1]

		var resp *http.Response
		if label == "" {
			resp, err = client.delete(cmd.Context(), path)
		} else {
			resp, err = client.put(cmd.Context(), path, map[string]any{"label": label})
		}
		if err != nil {
			return err
		}

		var p projectView
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}

		if label == "" {
			printSuccess("Restored default chapter name for %s", args[1])
		} else {
			printSuccess("Renamed %s to %q", args[1], label)
		}
		return nil
	},
}

func init() {
	chapterCmd.AddCommand(chapterAgeCmd)
	chapterCmd.AddCommand(chapterAdvanceCmd)
	chapterCmd.AddCommand(chapterJumpCmd)
	chapterCmd.AddCommand(chapterRenameCmd)
}

// --- snippet ---

var snippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Curate the story snippet deck",
}

var snippetListCmd = &cobra.Command{
	Use:   "list <project-id>",
	Short: "List active snippets in display order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		phaseFilter, _ := cmd.Flags().GetString("phase")
		archived, _ := cmd.Flags().GetBool("archived")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/projects/" + args[0] + "/snippets"
		if archived {
			path += "/archived"
		} else if phaseFilter != "" {
			path += "?phase=" + phaseFilter
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var snippets []snippetView
		if err := decodeJSON(resp, &snippets); err != nil {
			return err
		}

		printSnippets(snippets)
		return nil
	},
}

var snippetAddCmd = &cobra.Command{
	Use:   "add <project-id>",
	Short: "Add a snippet by hand",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		phaseName, _ := cmd.Flags().GetString("phase")
		theme, _ := cmd.Flags().GetString("theme")

		if title == "" || content == "" || phaseName == "" {
			return fmt.Errorf("--title, --content, and --phase are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/snippets", map[string]any{
			"title":   title,
			"content": content,
			"phase":   phaseName,
			"theme":   theme,
		})
		if err != nil {
			return err
		}

		var s snippetView
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		printSuccess("Added %q (%s)", s.Title, s.ID)
		return nil
	},
}

var snippetGenerateCmd = &cobra.Command{
	Use:   "generate <project-id>",
	Short: "Regenerate unlocked snippets from the interview transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Generating snippets, this can take a while...")
		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/snippets/generate", nil)
		if err != nil {
			return err
		}

		var snippets []snippetView
		if err := decodeJSON(resp, &snippets); err != nil {
			return err
		}

		printSuccess("Generated %d snippets", len(snippets))
		printSnippets(snippets)
		return nil
	},
}

var snippetLockCmd = &cobra.Command{
	Use:   "lock <project-id> <snippet-id>",
	Short: "Toggle a snippet's lock",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/snippets/"+args[1]+"/lock", nil)
		if err != nil {
			return err
		}

		var s snippetView
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		if s.IsLocked {
			printSuccess("Locked %q", s.Title)
		} else {
			printSuccess("Unlocked %q", s.Title)
		}
		return nil
	},
}

var snippetArchiveCmd = &cobra.Command{
	Use:   "archive <project-id> <snippet-id>",
	Short: "Archive a snippet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/snippets/"+args[1]+"/archive", nil)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Archived snippet %s", args[1])
		return nil
	},
}

var snippetRestoreCmd = &cobra.Command{
	Use:   "restore <project-id> <snippet-id>",
	Short: "Restore an archived snippet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/snippets/"+args[1]+"/restore", nil)
		if err != nil {
			return err
		}

		var s snippetView
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}

		printSuccess("Restored %q", s.Title)
		return nil
	},
}

var snippetReorderCmd = &cobra.Command{
	Use:   "reorder <project-id> <snippet-id>...",
	Short: "Reorder the active snippets (pass every active id, in the new order)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/projects/"+args[0]+"/snippets/order", map[string]any{
			"ids": args[1:],
		})
		if err != nil {
			return err
		}

		var snippets []snippetView
		if err := decodeJSON(resp, &snippets); err != nil {
			return err
		}

		printSuccess("Reordered %d snippets", len(snippets))
		return nil
	},
}

var snippetDeleteCmd = &cobra.Command{
	Use:   "delete <project-id> <snippet-id>",
	Short: "Permanently delete a snippet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/projects/"+args[0]+"/snippets/"+args[1])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted snippet %s", args[1])
		return nil
	},
}

func init() {
	snippetListCmd.Flags().String("phase", "", "filter by chapter phase")
	snippetListCmd.Flags().Bool("archived", false, "list archived snippets instead")
	snippetAddCmd.Flags().String("title", "", "snippet title")
	snippetAddCmd.Flags().String("content", "", "snippet content")
	snippetAddCmd.Flags().String("phase", "", "chapter phase the snippet belongs to")
	snippetAddCmd.Flags().String("theme", "", "emotional theme tag")
	snippetCmd.AddCommand(snippetListCmd)
	snippetCmd.AddCommand(snippetAddCmd)
	snippetCmd.AddCommand(snippetGenerateCmd)
	snippetCmd.AddCommand(snippetLockCmd)
	snippetCmd.AddCommand(snippetArchiveCmd)
	snippetCmd.AddCommand(snippetRestoreCmd)
	snippetCmd.AddCommand(snippetReorderCmd)
	snippetCmd.AddCommand(snippetDeleteCmd)
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <project-id>",
	Short: "Import supplementary material into the interview",
	Long: `Import supplementary material into the interview.

Examples:
  lifeloom import <id> --text "Grandpa grew up on a farm in Ohio"
  lifeloom import <id> --file ./memoir-notes.txt
  lifeloom import <id> --file ./army-records.pdf
  lifeloom import <id> --url https://example.com/obituary`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		url, _ := cmd.Flags().GetString("url")
		title, _ := cmd.Flags().GetString("title")

		if text == "" && file == "" && url == "" {
			return fmt.Errorf("one of --text, --file, or --url is required")
		}

		req := map[string]any{}
		if title != "" {
			req["title"] = title
		}

		switch {
		case text != "":
			req["type"] = "text"
			req["content"] = text
		case url != "":
			req["type"] = "url"
			req["url"] = url
		case file != "":
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			if strings.EqualFold(filepath.Ext(file), ".pdf") {
				req["type"] = "pdf"
				req["content"] = base64.StdEncoding.EncodeToString(data)
			} else {
				req["type"] = "text"
				req["content"] = string(data)
			}
			if title == "" {
				req["title"] = filepath.Base(file)
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/projects/"+args[0]+"/import", req)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported material into project %s", args[0])
		return nil
	},
}

func init() {
	importCmd.Flags().String("text", "", "text content to import")
	importCmd.Flags().String("file", "", "file path to import (.pdf or plain text)")
	importCmd.Flags().String("url", "", "URL to fetch and import")
	importCmd.Flags().String("title", "", "title for the imported material")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
