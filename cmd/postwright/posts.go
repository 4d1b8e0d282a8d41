package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/postwright/postwright/pkg/config"
	"github.com/postwright/postwright/pkg/models"
	"github.com/postwright/postwright/pkg/store"
)

func newPostsCmd(configPath *string) *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List generated posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			posts, err := s.List(cmd.Context(), models.PostStatus(status), limit)
			if err != nil {
				return err
			}
			counts, err := s.Counts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Print(formatPosts(posts, time.Now()))
			fmt.Println(formatCounts(counts))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, copied, posted)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "max posts to list")

	cmd.AddCommand(newPostsShowCmd(configPath), newPostsMarkCmd(configPath))
	return cmd
}

func newPostsShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			s, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("#%d  %s  %s  %s\n", p.ID, p.Status, p.SourceType, dollars(p.AICost, 4))
			if p.ImageURL != "" {
				fmt.Printf("image: %s (%s)\n", p.ImageURL, p.ImageSource)
			}
			fmt.Printf("\n%s\n", p.Content)
			return nil
		},
	}
}

func newPostsMarkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <id> <draft|copied|posted>",
		Short: "Change a post's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid post id %q", args[0])
			}
			s, err := openStore(*configPath)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.UpdateStatus(cmd.Context(), id, models.PostStatus(args[1])); err != nil {
				return err
			}
			fmt.Printf("Post %d marked %s.\n", id, args[1])
			return nil
		},
	}
}

func openStore(configPath string) (*store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.New(cfg.DBPath)
}

func formatPosts(posts []models.Post, now time.Time) string {
	if len(posts) == 0 {
		return "No posts found.\n"
	}
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		preview := strings.Join(strings.Fields(p.Content), " ")
		if r := []rune(preview); len(r) > 60 {
			preview = string(r[:57]) + "..."
		}
		image := "-"
		if p.ImageURL != "" {
			image = string(p.ImageSource)
		}
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			humanize.RelTime(p.CreatedAt, now, "ago", "from now"),
			string(p.Status), string(p.SourceType), image, dollars(p.AICost, 4), preview,
		})
	}
	return renderTable([]string{"ID", "CREATED", "STATUS", "SOURCE", "IMAGE", "COST", "PREVIEW"}, rows, 1, 6) + "\n"
}

func formatCounts(counts map[models.PostStatus]int) string {
	parts := make([]string, 0, 3)
	for _, st := range []models.PostStatus{models.PostDraft, models.PostCopied, models.PostPosted} {
		parts = append(parts, fmt.Sprintf("%s %d", st, counts[st]))
	}
	return strings.Join(parts, "  ")
}
