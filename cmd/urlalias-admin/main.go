package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/tendant/simple-urlalias/internal/logger"
	"github.com/tendant/simple-urlalias/pkg/urlalias"
	"github.com/tendant/simple-urlalias/pkg/urlalias/config"
)

const usage = `Simple URL Alias Admin CLI

Maintains the url alias tree of a content repository.

USAGE:
  urlalias-admin <command> [options]

COMMANDS:
  init-root       Create the root alias
  publish         Publish the autogenerated alias of a location in one language
  custom          Create a custom alias pointing at a location
  global          Create a custom alias pointing at a module:path resource
  list-global     List global aliases
  list-location   List the aliases of a location
  remove          Remove a custom alias by id
  lookup          Resolve a url path
  load            Load an alias by id
  move            Propagate a location move
  copy            Propagate a location copy
  delete          Remove every alias of a deleted location
  env             Describe the environment variables

ENVIRONMENT VARIABLES:
  URLALIAS_STORE_URL    memory, postgres://..., redis://..., badger:///path or badger://memory
  URLALIAS_LOG_LEVEL    debug, info, warn or error (default: info)

  Run "urlalias-admin env" for the full list.
  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  urlalias-admin init-root
  urlalias-admin publish --location-id=10 --parent-id=2 --name=news --lang=eng-GB
  urlalias-admin custom --location-id=10 --path=promo/summer --forward
  urlalias-admin global --resource=content:search --path=find
  urlalias-admin list-global --lang=eng-GB --limit=20
  urlalias-admin list-location --location-id=10 --custom
  urlalias-admin lookup --url=news/story
  urlalias-admin move --location-id=10 --old-parent-id=5 --new-parent-id=6
  urlalias-admin load --id=1-508c75c8507a2ae5223dfd2faeb98122 --json

OPTIONS:
  --location-id=<n>       Location id
  --parent-id=<n>         Parent location id (publish)
  --root-id=<n>           Root location id (init-root, default from URLALIAS_ROOT_LOCATION_ID)
  --old-parent-id=<n>     Previous parent location id (move, copy)
  --new-parent-id=<n>     New parent location id (move, copy)
  --name=<text>           Path element text (publish)
  --path=<path>           Alias path (custom, global)
  --resource=<res>        module:path resource (global)
  --lang=<code>           Language code
  --url=<path>            Url path (lookup)
  --id=<alias id>         Alias id as printed by list commands (load, remove)
  --offset=<n>            Pagination offset (list-global, default: 0)
  --limit=<n>             Maximum results (list-global, default: all)
  --always-available      Mark the alias always available
  --forward               Redirect to the destination instead of serving it
  --custom                List custom aliases (list-location)
  --json                  Output as JSON
`

type options struct {
	values  map[string]string
	useJSON bool
}

func parseOptions(args []string) options {
	opts := options{values: map[string]string{}}
	for _, arg := range args {
		if arg == "--json" {
			opts.useJSON = true
			continue
		}
		key, value := parseFlag(arg)
		if key != "" {
			opts.values[key] = value
		}
	}
	return opts
}

func parseFlag(arg string) (string, string) {
	if !strings.HasPrefix(arg, "--") || len(arg) <= 2 {
		return "", ""
	}
	key, value, ok := strings.Cut(arg[2:], "=")
	if !ok {
		return key, "true"
	}
	return key, value
}

func (o options) str(key string) string {
	return o.values[key]
}

func (o options) flag(key string) bool {
	v, _ := strconv.ParseBool(o.values[key])
	return v
}

func (o options) int64(key string) (int64, error) {
	raw, ok := o.values[key]
	if !ok {
		return 0, fmt.Errorf("--%s is required", key)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", key, err)
	}
	return n, nil
}

func (o options) intOr(key string, def int) (int, error) {
	raw, ok := o.values[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", key, err)
	}
	return n, nil
}

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	// Check for help
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Println(usage)
		os.Exit(0)
	}
	if command == "env" {
		text, err := config.Usage()
		if err != nil {
			log.Fatalf("Failed to describe environment: %v", err)
		}
		fmt.Println(text)
		os.Exit(0)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logs, err := logger.New(level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logs.Close()

	ctx := context.Background()
	svc, closeSvc, err := cfg.BuildService(ctx, logs.Logger)
	if err != nil {
		log.Fatalf("Failed to create url alias service: %v", err)
	}

	err = run(ctx, svc, cfg, command, parseOptions(os.Args[2:]), os.Stdout)
	if closeErr := closeSvc(); closeErr != nil {
		logs.Warn("close service", "error", closeErr)
	}
	if err != nil {
		logs.Error("command failed", "command", command, "error", err)
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc urlalias.Service, cfg *config.Config, command string, opts options, out io.Writer) error {
	switch command {
	case "init-root":
		rootID := cfg.RootLocationID
		if _, ok := opts.values["root-id"]; ok {
			n, err := opts.int64("root-id")
			if err != nil {
				return err
			}
			rootID = n
		}
		root, err := svc.InitializeRoot(ctx, rootID)
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, root)

	case "publish":
		locationID, err := opts.int64("location-id")
		if err != nil {
			return err
		}
		parentID, err := opts.int64("parent-id")
		if err != nil {
			return err
		}
		lang := opts.str("lang")
		if lang == "" {
			lang = cfg.DefaultLanguage
		}
		if err := svc.PublishURLAliasForLocation(ctx, urlalias.PublishRequest{
			LocationID:       locationID,
			ParentLocationID: parentID,
			Name:             opts.str("name"),
			LanguageCode:     lang,
			AlwaysAvailable:  opts.flag("always-available"),
		}); err != nil {
			return err
		}
		aliases, err := svc.ListURLAliasesForLocation(ctx, locationID, false)
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, aliases...)

	case "custom":
		locationID, err := opts.int64("location-id")
		if err != nil {
			return err
		}
		alias, err := svc.CreateCustomURLAlias(ctx, urlalias.CreateCustomAliasRequest{
			LocationID:      locationID,
			Path:            opts.str("path"),
			Forwarding:      opts.flag("forward"),
			LanguageCode:    opts.str("lang"),
			AlwaysAvailable: opts.flag("always-available"),
		})
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, alias)

	case "global":
		alias, err := svc.CreateGlobalURLAlias(ctx, urlalias.CreateGlobalAliasRequest{
			Resource:        opts.str("resource"),
			Path:            opts.str("path"),
			Forwarding:      opts.flag("forward"),
			LanguageCode:    opts.str("lang"),
			AlwaysAvailable: opts.flag("always-available"),
		})
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, alias)

	case "list-global":
		offset, err := opts.intOr("offset", 0)
		if err != nil {
			return err
		}
		limit, err := opts.intOr("limit", 0)
		if err != nil {
			return err
		}
		aliases, err := svc.ListGlobalURLAliases(ctx, urlalias.ListGlobalAliasesRequest{
			LanguageCode: opts.str("lang"),
			Offset:       offset,
			Limit:        limit,
		})
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, aliases...)

	case "list-location":
		locationID, err := opts.int64("location-id")
		if err != nil {
			return err
		}
		aliases, err := svc.ListURLAliasesForLocation(ctx, locationID, opts.flag("custom"))
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, aliases...)

	case "remove":
		alias, err := svc.LoadURLAlias(ctx, opts.str("id"))
		if err != nil {
			return err
		}
		if !alias.IsCustom {
			return fmt.Errorf("alias %s is autogenerated and cannot be removed", alias.DisplayID)
		}
		if err := svc.RemoveURLAliases(ctx, []*urlalias.URLAlias{alias}); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %s\n", alias.DisplayID)
		return nil

	case "lookup":
		alias, err := svc.Lookup(ctx, opts.str("url"))
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, alias)

	case "load":
		alias, err := svc.LoadURLAlias(ctx, opts.str("id"))
		if err != nil {
			return err
		}
		return printAliases(out, opts.useJSON, alias)

	case "move", "copy":
		locationID, err := opts.int64("location-id")
		if err != nil {
			return err
		}
		oldParentID, err := opts.int64("old-parent-id")
		if err != nil {
			return err
		}
		newParentID, err := opts.int64("new-parent-id")
		if err != nil {
			return err
		}
		if command == "move" {
			err = svc.LocationMoved(ctx, locationID, oldParentID, newParentID)
		} else {
			err = svc.LocationCopied(ctx, locationID, oldParentID, newParentID)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Location %d: %s from %d to %d\n", locationID, command, oldParentID, newParentID)
		return nil

	case "delete":
		locationID, err := opts.int64("location-id")
		if err != nil {
			return err
		}
		if err := svc.LocationDeleted(ctx, locationID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed aliases of location %d\n", locationID)
		return nil

	default:
		return fmt.Errorf("unknown command %q, run with --help", command)
	}
}

func printAliases(out io.Writer, useJSON bool, aliases ...*urlalias.URLAlias) error {
	if useJSON {
		data, err := json.MarshalIndent(aliases, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	// Table output
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTYPE\tDESTINATION\tPATH\tLANGUAGES\tFLAGS\n")
	for _, a := range aliases {
		path := a.Path(firstLanguage(a))
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.DisplayID,
			a.Type,
			valueOr(a.Destination, "-"),
			truncate(path, 60),
			valueOr(strings.Join(a.LanguageCodes, ","), "-"),
			flags(a),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nTotal: %d\n", len(aliases))
	return nil
}

func firstLanguage(a *urlalias.URLAlias) string {
	if len(a.LanguageCodes) == 0 {
		return urlalias.AlwaysAvailableLanguage
	}
	return a.LanguageCodes[0]
}

func flags(a *urlalias.URLAlias) string {
	var f []string
	if a.IsCustom {
		f = append(f, "custom")
	}
	if a.IsHistory {
		f = append(f, "history")
	}
	if a.Forward {
		f = append(f, "forward")
	}
	if a.AlwaysAvailable {
		f = append(f, "always-available")
	}
	return valueOr(strings.Join(f, ","), "-")
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
