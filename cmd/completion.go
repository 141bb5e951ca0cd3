package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/OpenMDAO/qsubrun/internal/config"
	"github.com/OpenMDAO/qsubrun/internal/jobfile"
	"github.com/spf13/cobra"
)

// detectShell guesses the completion flavour from $SHELL
func detectShell() string {
	switch base := strings.ToLower(filepath.Base(os.Getenv("SHELL"))); {
	case strings.Contains(base, "zsh"):
		return "zsh"
	case strings.Contains(base, "fish"):
		return "fish"
	default:
		return "bash"
	}
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish]",
	Short: "Generate shell completion script",
	Long: `Generate a shell completion script for qsubrun.

If no shell is given, it is detected from $SHELL.

Bash:
  $ source <(qsubrun completion bash)

Zsh:
  $ qsubrun completion zsh > "${fpath[1]}/_qsubrun"

Fish:
  $ qsubrun completion fish > ~/.config/fish/completions/qsubrun.fish

The first positional argument completes to a configured runner. Everything
after the runner falls back to file completion.`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish"},
	Args:                  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := detectShell()
		if len(args) > 0 {
			shell = args[0]
		}

		out := cmd.OutOrStdout()
		switch shell {
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			var buf bytes.Buffer
			if err := cmd.Root().GenBashCompletionV2(&buf, true); err != nil {
				return err
			}
			_, err := out.Write([]byte(postProcessBashCompletion(buf.String())))
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
	rootCmd.ValidArgsFunction = runnerCompletion
}

// runnerCompletion offers runner names until one has been typed.
func runnerCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	runners := config.Global.Runners
	if len(runners) == 0 {
		runners = jobfile.DefaultRunners
	}
	if tokens, _ := jobfile.SplitCommand(args, runners); len(tokens) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}

	var matches []string
	for _, r := range runners {
		if strings.HasPrefix(r, toComplete) {
			matches = append(matches, r)
		}
	}
	return matches, cobra.ShellCompDirectiveNoFileComp
}

// postProcessBashCompletion makes bash use plain file completion after a
// literal "--", where qsubrun stops parsing its own flags.
func postProcessBashCompletion(script string) string {
	oldCode := `args=("${words[@]:1}")
    requestComp="${words[0]} __complete ${args[*]}"`

	newCode := `args=("${words[@]:1}")
    for word in "${words[@]}"; do
        if [[ "$word" == "--" ]]; then
            return
        fi
    done
    requestComp="${words[0]} __complete ${args[*]}"`

	return strings.Replace(script, oldCode, newCode, 1)
}
