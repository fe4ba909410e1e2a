package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/pageshot/pkg/store"
)

// capturesCommand creates the captures management command.
func (c *CLI) capturesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Manage stored captures",
	}

	cmd.AddCommand(c.capturesListCommand())
	cmd.AddCommand(c.capturesShowCommand())
	cmd.AddCommand(c.capturesDeleteCommand())
	cmd.AddCommand(c.capturesCleanupCommand())

	return cmd
}

func (c *CLI) capturesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live captures, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.List(ctx)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No captures stored")
				return nil
			}
			fmt.Println(capturesTable(recs, time.Now()))
			return nil
		},
	}
}

// capturesTable renders records as a bordered table.
func capturesTable(recs []*store.Record, now time.Time) string {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			r.ID,
			captureLabel(r),
			string(r.Mode),
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			formatAge(now, r.CreatedAt),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleTableBorder).
		Headers("ID", "Page", "Mode", "Size", "Taken").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return styleTableHeader
			case col == 0:
				return StyleHighlight
			case col >= 2:
				return StyleDim
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

func (c *CLI) capturesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <capture-id>",
		Short: "Show a capture's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			ttl := c.config().Store.TTL.Duration

			printKeyValue("ID", rec.ID)
			printKeyValue("Title", rec.Title)
			printKeyValue("URL", rec.URL)
			printKeyValue("Source", rec.SourceID)
			printKeyValue("Mode", string(rec.Mode))
			printKeyValue("Size", fmt.Sprintf("%dx%d", rec.Width, rec.Height))
			printKeyValue("DPR", strconv.FormatFloat(rec.DevicePixelRatio, 'f', -1, 64))
			printKeyValue("Image", fmt.Sprintf("%s, %s", rec.ImageMIME, formatBytes(len(rec.Image))))
			printKeyValue("Created", rec.CreatedAt.Local().Format(time.DateTime))
			printKeyValue("Expires", rec.ExpiresAt(ttl).Local().Format(time.DateTime))
			return nil
		},
	}
}

func (c *CLI) capturesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <capture-id>...",
		Short: "Delete captures",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.newStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			for _, id := range args {
				if err := st.Delete(ctx, id); err != nil {
					return err
				}
			}
			printSuccess("Deleted %d captures", len(args))
			return nil
		},
	}
}

func (c *CLI) capturesCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired captures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Cleanup(ctx)
			if err != nil {
				return err
			}
			printSuccess("Removed %d expired captures", n)
			return nil
		},
	}
}
