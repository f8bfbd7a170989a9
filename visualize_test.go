package main

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/cppla/chamran/models"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store/memstore"
	"github.com/cppla/chamran/utils"
)

func TestRenderFollowGraph(t *testing.T) {
	utils.SetPasswordCost(bcrypt.MinCost)

	tests := []struct {
		name  string
		edges [][2]string
	}{
		{"no edges", nil},
		{"one way", [][2]string{{"alice", "bob"}}},
		{"mutual and fan out", [][2]string{{"alice", "bob"}, {"bob", "alice"}, {"bob", "carol"}}},
		{"self follow", [][2]string{{"carol", "carol"}, {"carol", "alice"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc := services.New(memstore.New(), nil, zap.NewNop(), services.Options{})

			byName := map[string]*models.User{}
			var ids []string
			for _, name := range []string{"alice", "bob", "carol"} {
				u, err := svc.Accounts.Signup(ctx, name, name+"@example.com", "pw")
				require.NoError(t, err)
				byName[name] = u
				ids = append(ids, u.ID)
			}
			follows := map[string][]string{}
			for _, e := range tt.edges {
				from, to := byName[e[0]].ID, byName[e[1]].ID
				_, err := svc.Graph.Follow(ctx, from, to)
				require.NoError(t, err)
				follows[from] = append(follows[from], to)
			}

			var want strings.Builder
			want.WriteString("digraph U {\n")
			slices.Sort(ids)
			for _, id := range ids {
				var u *models.User
				for _, candidate := range byName {
					if candidate.ID == id {
						u = candidate
					}
				}
				fmt.Fprintf(&want, "%q [label=%q];\n", id, id+"\n"+u.Name+"\n"+u.Email)
				for _, to := range follows[id] {
					fmt.Fprintf(&want, "%q -> %q;\n", id, to)
				}
			}
			want.WriteString("}\n")

			var buf bytes.Buffer
			require.NoError(t, renderFollowGraph(ctx, svc.Accounts, &buf))
			assert.Equal(t, want.String(), buf.String())
			assert.Equal(t, len(tt.edges), strings.Count(buf.String(), " -> "))
		})
	}
}

func TestWriteDOTQuotesLabels(t *testing.T) {
	var buf bytes.Buffer
	users := []models.User{
		{ID: "2", Name: `Bob "the builder"`, Email: "bob@example.com", Followings: []string{"gone"}},
		{ID: "1", Name: "Alice", Email: "alice@example.com"},
	}
	require.NoError(t, writeDOT(&buf, users))
	assert.Equal(t, "digraph U {\n"+
		`"1" [label="1\nAlice\nalice@example.com"];`+"\n"+
		`"2" [label="2\nBob \"the builder\"\nbob@example.com"];`+"\n"+
		`"2" -> "gone";`+"\n"+
		"}\n", buf.String())
	assert.Equal(t, "2", users[0].ID, "input order untouched")
}
