package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store"
)

func visualizeCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "visualize",
		Short: "Print the follow graph in Graphviz DOT format",
		Long: `visualize writes every user as a node and every follow edge as an arrow from the
follower to the followed user. Render it with: chamran visualize | dot -Tsvg > graph.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.close(ctx) }()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return renderFollowGraph(ctx, a.services.Accounts, w)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

// renderFollowGraph lists every user and writes the follow graph to w.
func renderFollowGraph(ctx context.Context, accounts *services.AccountService, w io.Writer) error {
	users, err := accounts.ListUsers(ctx, store.UserFilter{})
	if err != nil {
		return err
	}
	return writeDOT(w, users)
}

// writeDOT emits a digraph with one labelled node per user, ordered by id, and one edge per
// followings entry. Edges to users that no longer exist are kept.
func writeDOT(w io.Writer, users []models.User) error {
	users = slices.Clone(users)
	slices.SortFunc(users, func(a, b models.User) int { return strings.Compare(a.ID, b.ID) })

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph U {")
	for _, u := range users {
		id := strconv.Quote(u.ID)
		fmt.Fprintf(bw, "%s [label=%s];\n", id, strconv.Quote(u.ID+"\n"+u.Name+"\n"+u.Email))
		for _, f := range u.Followings {
			fmt.Fprintf(bw, "%s -> %s;\n", id, strconv.Quote(f))
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
