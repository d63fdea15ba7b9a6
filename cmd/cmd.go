package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sphinxkit/htk2s3/convert"
	"github.com/sphinxkit/htk2s3/envconfig"
	"github.com/sphinxkit/htk2s3/htk"
	"github.com/sphinxkit/htk2s3/logutil"
	"github.com/sphinxkit/htk2s3/progress"
	"github.com/sphinxkit/htk2s3/tying"
	"github.com/sphinxkit/htk2s3/version"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "htk2s3",
		Short:   "Convert HTK acoustic models to Sphinx-3 models",
		Version: version.Version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Disable usage printing on errors
			cmd.SilenceUsage = true

			if err := LoadDotEnv(); err != nil {
				return err
			}

			envconfig.LoadConfig()
			slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(envconfig.Debug)))
			slog.Debug("config", "env", envconfig.Values())
			return nil
		},
	}

	cobra.EnableCommandSorting = false

	convertCmd := &cobra.Command{
		Use:   "convert HMMDEFS TIEDLIST",
		Short: "Write Sphinx-3 model files from HTK model definitions",
		Long: `Write mdef, means, variances, mixture_weights and transition_matrices
from an HTK model definition file and its model tying list.`,
		Args: cobra.ExactArgs(2),
		RunE: ConvertHandler,
	}

	convertCmd.Flags().StringP("output", "o", "", "Prefix prepended to every output file name")
	convertCmd.Flags().String("silence", "", "Base phone given the filler attribute (default $HTK2S3_SILENCE_PHONE or \"sil\")")
	convertCmd.Flags().Bool("sequential", false, "Write output files one at a time")

	showCmd := &cobra.Command{
		Use:   "show HMMDEFS",
		Short: "List the models in an HTK model definition file",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}

	showCmd.Flags().BoolP("verbose", "v", false, "Dump every state and transition matrix")

	inspectCmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Print the header counts of Sphinx-3 model files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  InspectHandler,
	}

	rootCmd.AddCommand(
		convertCmd,
		showCmd,
		inspectCmd,
	)

	// subcommands inherit the root usage template
	appendEnvDocs(rootCmd, envconfig.AsMap())
	return rootCmd
}

func appendEnvDocs(cmd *cobra.Command, envs map[string]envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	keys := make([]string, 0, len(envs))
	for k := range envs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "    %-22s %s\n", k, envs[k].Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + sb.String())
}

func ConvertHandler(cmd *cobra.Command, args []string) error {
	prefix, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	silence, err := cmd.Flags().GetString("silence")
	if err != nil {
		return err
	}

	if silence == "" {
		silence = envconfig.SilencePhone
	}

	sequential, err := cmd.Flags().GetBool("sequential")
	if err != nil {
		return err
	}

	opts := convert.Options{
		HmmDefs:      args[0],
		TiedList:     args[1],
		Prefix:       prefix,
		SilencePhone: silence,
		Sequential:   sequential || envconfig.Sequential,
	}

	if envconfig.Debug == 0 && !envconfig.NoProgress && term.IsTerminal(int(os.Stderr.Fd())) {
		// the spinner replaces the info logs
		slog.SetDefault(logutil.NewLogger(os.Stderr, slog.LevelWarn))

		p := progress.NewProgress(os.Stderr)
		defer p.Stop()

		var spinner *progress.Spinner
		opts.Progress = func(phase string) {
			if spinner != nil {
				spinner.Stop()
			}

			spinner = progress.NewSpinner(phase)
			p.Add(spinner)
		}
	}

	summary, err := convert.Convert(cmd.Context(), opts)
	if err != nil {
		return err
	}

	var data [][]string
	for _, o := range summary.Outputs {
		data = append(data, []string{o.Path, strconv.FormatInt(o.Size, 10)})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d models: %d monophones, %d triphones, %d tied states (%d context independent), %d transition matrices\n",
		summary.Hmms, summary.Monophones, summary.Triphones, summary.States, summary.CIStates, summary.Tmats)
	writeTable(cmd.OutOrStdout(), []string{"FILE", "BYTES"}, data)
	return nil
}

func ShowHandler(cmd *cobra.Command, args []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	hmms, err := htk.Parse(f)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if verbose {
		for _, hmm := range hmms {
			hmm.Display(w)
		}

		return nil
	}

	var data [][]string
	for _, hmm := range hmms {
		class := "unknown"
		if phone, ok := tying.Classify(hmm.Name); ok {
			class = phone.Class.String()
		}

		ids := make([]string, len(hmm.States))
		for i, s := range hmm.States {
			ids[i] = strconv.Itoa(s.State.ID)
		}

		data = append(data, []string{hmm.Name, class, strings.Join(ids, ","), strconv.Itoa(hmm.Tmat.ID), strconv.Itoa(hmm.Tmat.NumStates())})
	}

	writeTable(w, []string{"NAME", "CLASS", "STATES", "TMAT", "ORDER"}, data)
	return nil
}

func InspectHandler(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	for _, path := range args {
		if strings.HasSuffix(filepath.Base(path), "mdef") {
			if err := inspectMdef(w, path); err != nil {
				return err
			}

			continue
		}

		file, names, err := convert.ReadBinary(path)
		if err != nil {
			return err
		}

		data := [][]string{{"byte_order", file.ByteOrder.String()}}
		for i, name := range names {
			data = append(data, []string{name, strconv.FormatUint(uint64(file.Counts[i]), 10)})
		}
		data = append(data, []string{"n_float", strconv.Itoa(len(file.Data))})

		fmt.Fprintln(w, path)
		writeTable(w, nil, data)
	}

	return nil
}

func inspectMdef(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	m, err := convert.ReadMdef(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintln(w, path)
	writeTable(w, nil, [][]string{
		{"version", m.Version},
		{"n_base", strconv.Itoa(m.NumBase)},
		{"n_tri", strconv.Itoa(m.NumTri)},
		{"n_state_map", strconv.Itoa(m.NumStateMap)},
		{"n_tied_state", strconv.Itoa(m.NumTiedState)},
		{"n_tied_ci_state", strconv.Itoa(m.NumTiedCI)},
		{"n_tied_tmat", strconv.Itoa(m.NumTiedTmat)},
		{"rows", strconv.Itoa(len(m.Rows))},
	})
	return nil
}

func writeTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	if header != nil {
		table.SetHeader(header)
	}
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
