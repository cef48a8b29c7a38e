// Copyright 2024 Mango Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command mango is a small command-line shell for the client library.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	_ "go.uber.org/automaxprocs"

	"github.com/mangodb/mango/bson"
	"github.com/mangodb/mango/build/version"
	"github.com/mangodb/mango/internal/util/logging"
	"github.com/mangodb/mango/internal/util/observability"
	"github.com/mangodb/mango/mango"
)

// The cli struct represents all command-line commands, fields and flags.
// It's used for parsing with kong.
var cli struct {
	URI        string `default:"mongodb://127.0.0.1:27017/" help:"MongoDB URI."`
	Database   string `default:"test"                       help:"Database name."           short:"d"`
	Collection string `default:"test"                       help:"Collection name."         short:"c"`
	LogLevel   string `default:"info"                       help:"${help_log_level}"`

	StrictWrites bool `help:"Fail writes that the server reports as failed."`

	OtelEndpoint string `help:"OTLP trace endpoint; tracing is disabled if empty." name:"otel-endpoint"`

	Version struct{} `cmd:"" help:"Print version and exit."`

	Insert struct {
		Document string `arg:"" help:"Document to insert as a JSON object."`
	} `cmd:"" help:"Insert a document."`

	Find struct {
		Query string `arg:"" help:"Query as a JSON object; matches everything if empty." optional:""`
	} `cmd:"" help:"Find all matching documents."`

	FindOne struct {
		Query string `arg:"" help:"Query as a JSON object; matches everything if empty." optional:""`
	} `cmd:"" help:"Find the first matching document."`

	Remove struct {
		Query string `arg:"" help:"Query as a JSON object."`
	} `cmd:"" help:"Remove all matching documents."`

	Update struct {
		Query  string `arg:"" help:"Query as a JSON object."`
		Update string `arg:"" help:"Update document as a JSON object."`

		Upsert bool `help:"Insert the document if nothing matches." xor:"mode"`
		Multi  bool `help:"Update all matches, not only the first." xor:"mode"`
	} `cmd:"" help:"Update matching documents."`
}

func main() {
	kctx := kong.Parse(
		&cli,
		kong.Vars{
			"help_log_level": fmt.Sprintf("Log level: '%s'.", logging.Levels()),
		},
	)

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		kctx.Fatalf("%s.", err)
	}

	l := logging.Setup(os.Stderr, level)
	slog.SetDefault(l)

	ctx := context.Background()

	if cli.OtelEndpoint != "" {
		shutdown, err := observability.SetupOtel("mango", cli.OtelEndpoint)
		if err != nil {
			l.Error("Failed to set up tracing", logging.Error(err))
			os.Exit(1)
		}

		defer func() {
			if err := shutdown(ctx); err != nil {
				l.Warn("Failed to shut down tracing", logging.Error(err))
			}
		}()
	}

	if kctx.Command() == "version" {
		info := version.Get()
		fmt.Fprintf(os.Stdout, "version: %s\ncommit: %s\n", info.Version, info.Commit)

		return
	}

	if err := run(ctx, kctx.Command(), l); err != nil {
		l.Error("Command failed", logging.Error(err))
		os.Exit(1)
	}
}

// run connects, dispatches the parsed command, and closes the connection.
func run(ctx context.Context, command string, l *slog.Logger) error {
	client, err := mango.Connect(ctx, &mango.Config{
		URI:          cli.URI,
		Logger:       l,
		StrictWrites: cli.StrictWrites,
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			l.Warn("Failed to close connection", logging.Error(err))
		}
	}()

	coll, err := client.Database(cli.Database).Collection(cli.Collection)
	if err != nil {
		return err
	}

	switch command {
	case "insert <document>":
		doc, err := parseDocument(cli.Insert.Document)
		if err != nil {
			return err
		}

		if _, err = coll.Insert(ctx, doc); err != nil {
			return err
		}

		l.InfoContext(ctx, "Inserted one document")

		return nil

	case "find", "find <query>":
		var query *bson.Document

		if cli.Find.Query != "" {
			if query, err = parseDocument(cli.Find.Query); err != nil {
				return err
			}
		}

		docs, err := coll.Find(ctx, query)
		if err != nil {
			return err
		}

		for _, doc := range docs {
			s, err := renderDocument(doc)
			if err != nil {
				return err
			}

			fmt.Fprintln(os.Stdout, s)
		}

		l.InfoContext(ctx, "Found documents", slog.Int("count", len(docs)))

		return nil

	case "find-one", "find-one <query>":
		var query *bson.Document

		if cli.FindOne.Query != "" {
			if query, err = parseDocument(cli.FindOne.Query); err != nil {
				return err
			}
		}

		doc, err := coll.FindOne(ctx, query)
		if err != nil {
			return err
		}

		s, err := renderDocument(doc)
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stdout, s)

		return nil

	case "remove <query>":
		query, err := parseDocument(cli.Remove.Query)
		if err != nil {
			return err
		}

		if _, err = coll.Remove(ctx, query); err != nil {
			return err
		}

		l.InfoContext(ctx, "Removed matching documents")

		return nil

	case "update <query> <update>":
		query, err := parseDocument(cli.Update.Query)
		if err != nil {
			return err
		}

		update, err := parseDocument(cli.Update.Update)
		if err != nil {
			return err
		}

		mode := mango.UpdateBasic

		switch {
		case cli.Update.Upsert:
			mode = mango.UpdateUpsert
		case cli.Update.Multi:
			mode = mango.UpdateMulti
		}

		if _, err = coll.Update(ctx, query, update, mode); err != nil {
			return err
		}

		l.InfoContext(ctx, "Updated matching documents")

		return nil

	default:
		return fmt.Errorf("unhandled command %q", command)
	}
}
