package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
	"github.com/ryokushen/financial/cmd"
)

func main() {
	// Shell completion: when invoked by the shell's completion hook this
	// prints the candidates and exits.
	completer().Complete("fin")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "help")
	commander.Register(commander.FlagsCommand(), "help")
	commander.Register(commander.CommandsCommand(), "help")
	cmd.Register(commander)

	cmd.SetupFlags(flag.CommandLine)
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func completer() *complete.Command {
	globals := map[string]complete.Predictor{
		"data":  predict.Dirs("*"),
		"mysql": predict.Something,
		"v":     predict.Nothing,
	}
	return &complete.Command{
		Flags: globals,
		Sub: map[string]*complete.Command{
			"add":      {Flags: map[string]complete.Predictor{"d": predict.Something, "amount": predict.Something, "category": predict.Something, "desc": predict.Something, "on": predict.Something, "notes": predict.Something, "cleared": predict.Nothing, "force": predict.Nothing}},
			"transfer": {Flags: map[string]complete.Predictor{"d": predict.Something, "amount": predict.Something, "from": predict.Something, "to": predict.Something, "desc": predict.Something}},
			"pay":      {Flags: map[string]complete.Predictor{"d": predict.Something, "amount": predict.Something, "cash": predict.Something, "debt": predict.Something, "desc": predict.Something}},
			"rm":       {Flags: map[string]complete.Predictor{"reverse": predict.Nothing}},
			"tx":       {Flags: map[string]complete.Predictor{"p": predict.Set{"day", "week", "month", "quarter", "year"}, "from": predict.Something, "to": predict.Something, "category": predict.Something, "merchant": predict.Something, "on": predict.Something, "cleared": predict.Nothing, "open": predict.Nothing}},
			"search":   {Flags: map[string]complete.Predictor{"category": predict.Something, "on": predict.Something, "from": predict.Something, "to": predict.Something, "min": predict.Something, "max": predict.Something, "sort": predict.Set{"date", "amount", "description", "category"}, "desc": predict.Nothing, "offset": predict.Something, "limit": predict.Something}},
			"summary":  {Flags: map[string]complete.Predictor{"p": predict.Set{"day", "week", "month", "quarter", "year"}, "from": predict.Something, "to": predict.Something}},
			"import":   {Flags: map[string]complete.Predictor{"field": predict.Something, "category": predict.Something, "account": predict.Something, "skip-duplicates": predict.Nothing, "stop-on-error": predict.Nothing, "rollback": predict.Nothing}, Args: predict.Files("*.jsonl")},
			"export":   {Flags: map[string]complete.Predictor{"format": predict.Set{"csv", "records", "ledger"}, "o": predict.Files("*"), "from": predict.Something, "to": predict.Something}},
			"repair":   {Flags: map[string]complete.Predictor{"debt": predict.Something}},
			"topic":    {Args: predict.Set{"accounts", "formats", "import", "repair", "readme", "*"}},
		},
	}
}
