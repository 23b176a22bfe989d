// Package mcp serves the account store to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/neilberkman/acctabs/internal/core/db"
	"github.com/neilberkman/acctabs/internal/core/filter"
	"github.com/neilberkman/acctabs/internal/core/models"
	"go.uber.org/zap"
)

// ListAccountsArgs defines arguments for the list_accounts tool
type ListAccountsArgs struct {
	Since string `json:"since,omitempty" jsonschema:"description=Only accounts active since this date (e.g. yesterday, 2025-01-01)"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max accounts to return (default: all)"`
}

// GetAccountArgs defines arguments for the get_account tool
type GetAccountArgs struct {
	ID int64 `json:"id" jsonschema:"description=Account id,required"`
}

// AccountSummary is one account as returned to clients. The password digest
// is never exposed, only whether one is set.
type AccountSummary struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	StoragePath       string `json:"storage_path"`
	ZoomPercent       int    `json:"zoom_percent"`
	PasswordProtected bool   `json:"password_protected"`
	LastActive        string `json:"last_active,omitempty"`
	LastActiveHuman   string `json:"last_active_human"`
}

// AccountStore is the read side the tools need
type AccountStore interface {
	ListAccounts() ([]models.Account, error)
	GetAccount(id int64) (*models.Account, error)
}

// StartServer starts the MCP server
func StartServer(dbPath string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Open database
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			logger.Warn("error closing database", zap.Error(closeErr))
		}
	}()

	s := NewServer(database)
	logger.Info("mcp server listening on stdio", zap.String("db", dbPath))
	return server.ServeStdio(s)
}

// NewServer registers the account tools against store
func NewServer(store AccountStore) *server.MCPServer {
	s := server.NewMCPServer(
		"acctabs",
		"1.0.0",
	)

	// Register list_accounts tool
	listTool := mcp.NewTool("list_accounts",
		mcp.WithDescription("List managed accounts, most recently active first, with zoom level, lock status and profile directory."),
		mcp.WithString("since",
			mcp.Description("Only accounts active since this date: natural language ('yesterday', '2 weeks ago') or ISO 8601 ('2025-01-01')")),
		mcp.WithNumber("limit",
			mcp.Description("Max accounts to return (default: all)")),
	)
	s.AddTool(listTool, makeListAccountsHandler(store))

	// Register get_account tool
	getTool := mcp.NewTool("get_account",
		mcp.WithDescription("Retrieve one managed account by id"),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Account id")),
	)
	s.AddTool(getTool, makeGetAccountHandler(store))

	return s
}

func makeListAccountsHandler(store AccountStore) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ListAccountsArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		opts := filter.Options{Limit: args.Limit}
		if args.Since != "" {
			since, err := filter.ParseSince(args.Since, time.Now())
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
			}
			opts.Since = since
		}

		accounts, err := store.ListAccounts()
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list accounts: %v", err)), nil
		}

		results := []AccountSummary{}
		for _, a := range filter.Apply(accounts, opts) {
			results = append(results, summarize(a))
		}

		resultJSON, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func makeGetAccountHandler(store AccountStore) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GetAccountArgs
		argsBytes, _ := json.Marshal(request.Params.Arguments)
		if err := json.Unmarshal(argsBytes, &args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}
		if args.ID <= 0 {
			return mcp.NewToolResultError("id is required"), nil
		}

		account, err := store.GetAccount(args.ID)
		if errors.Is(err, db.ErrAccountNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("account not found: %d", args.ID)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get account: %v", err)), nil
		}

		resultJSON, err := json.MarshalIndent(summarize(*account), "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(resultJSON)), nil
	}
}

func summarize(a models.Account) AccountSummary {
	s := AccountSummary{
		ID:                a.ID,
		Name:              a.Name,
		StoragePath:       a.StoragePath,
		ZoomPercent:       models.ZoomPercent(a.ZoomFactor),
		PasswordProtected: a.HasPassword(),
		LastActiveHuman:   "never",
	}
	if !a.LastActiveAt.IsZero() {
		s.LastActive = a.LastActiveAt.UTC().Format(time.RFC3339)
		s.LastActiveHuman = humanize.Time(a.LastActiveAt)
	}
	return s
}
