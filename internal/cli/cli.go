// Package cli provides the command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pickctx/pickctx/internal/config"
	"github.com/pickctx/pickctx/internal/output/render"
	"github.com/pickctx/pickctx/internal/services/clipboard"
	"github.com/pickctx/pickctx/internal/services/stream"
	"github.com/pickctx/pickctx/internal/settings"
	"github.com/pickctx/pickctx/internal/tokenizer"
	"github.com/pickctx/pickctx/internal/types"
	"github.com/pickctx/pickctx/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	selectFlagName         = "select"
	copyFlagName           = "copy"
	mapOnlyFlagName        = "map-only"
	jsonFlagName           = "json"
	exclusionFlagName      = "e"
	noGitignoreFlagName    = "no-gitignore"
	hiddenFlagName         = "hidden"
	followSymlinksFlagName = "follow-symlinks"
	summaryFlagName        = "summary"
	tokensFlagName         = "tokens"
	modelFlagName          = "model"
	tokenizerFileFlagName  = "tokenizer-file"
	globalFlagName         = "global"
	forceFlagName          = "force"
	versionFlagName        = "version"
	versionTemplate        = "pickctx version: %s\n"
	defaultPath            = "."
	rootUse                = "pickctx"
	rootShortDescription   = "pickctx command line interface"
	rootLongDescription    = `pickctx packs selected project files into one model-ready document.
It renders a <file_map> tree of the selection followed by a <file_contents>
section with each file fenced by language, counts tokens for the configured
model, and can place the result on the clipboard. Use --json for the
machine-readable event stream and --version to print the application version.`

	versionFlagDescription     = "display application version"
	packUse                    = packCommandName + " [path]"
	mapUse                     = mapCommandName + " [path]"
	modelsUse                  = "models"
	configUse                  = "config"
	configInitUse              = "init"
	packAlias                  = "p"
	mapAlias                   = "m"
	packShortDescription       = "pack selected files into a context document (" + packAlias + ")"
	mapShortDescription        = "print only the file map (" + mapAlias + ")"
	modelsShortDescription     = "list known tokenizer models"
	configShortDescription     = "manage configuration files"
	configInitShortDescription = "write the default configuration file"

	// packLongDescription provides detailed help for the pack command.
	packLongDescription = `Pack selected files from a directory tree into one context document.
The document renders a <file_map> of the selection followed by a
<file_contents> section with each file fenced by language. Use --select to
restrict the selection, --tokens to count tokens, and --copy to place the
result on the clipboard instead of printing it.`
	// packUsageExample demonstrates pack command usage.
	packUsageExample = `  # Pack the current directory and copy the result
  pickctx pack --copy

  # Pack two subtrees with token counts
  pickctx pack --select src --select docs --tokens .`

	// mapLongDescription provides detailed help for the map command.
	mapLongDescription = `Print only the <file_map> section for a directory tree.
Selection and traversal flags match the pack command.`
	// mapUsageExample demonstrates map command usage.
	mapUsageExample = `  # Print the file map of the current directory
  pickctx map

  # Include hidden entries and skip gitignore rules
  pickctx map --hidden --no-gitignore .`

	selectFlagDescription           = "relative path to select; repeatable, selects everything when omitted"
	copyFlagDescription             = "copy the document to the clipboard instead of printing it"
	mapOnlyFlagDescription          = "emit only the <file_map> section"
	jsonFlagDescription             = "emit the event stream as JSON lines"
	exclusionFlagDescription        = "exclude path pattern"
	disableGitignoreFlagDescription = "do not use .gitignore files"
	hiddenFlagDescription           = "include hidden files and directories"
	followSymlinksFlagDescription   = "descend into symlinked directories"
	summaryFlagDescription          = "print a summary line on stderr"
	tokensFlagDescription           = "include token counts"
	modelFlagDescription            = "tokenizer model for token counting"
	tokenizerFileFlagDescription    = "path to a local tokenizer.json definition"
	globalFlagDescription           = "write the global configuration file"
	forceFlagDescription            = "overwrite an existing configuration file"
	unknownModelWarningFormat       = "Warning: unknown model '%s', using %s\n"
	settingsWarningFormat           = "Warning: %v\n"
	saveSettingsWarningFormat       = "Warning: saving settings: %v\n"
	workingDirectoryErrorFormat     = "unable to determine working directory: %w"
	configInitializedFormat         = "Configuration written to %s\n"
	modelsRowFormat                 = "%-24s%10s%s\n"
	defaultModelMarker              = " (default)"
	noTokenLimitPlaceholder         = "-"

	// errorAbsolutePathFormat reports failure to resolve an absolute path.
	errorAbsolutePathFormat = "abs failed for '%s': %w"
	// errorPathMissingFormat reports a missing root path.
	errorPathMissingFormat = "path '%s' does not exist"
	// errorNotDirectoryFormat reports a root path that is not a directory.
	errorNotDirectoryFormat = "path '%s' is not a directory"
	// errorStatFormat reports failure to retrieve file statistics.
	errorStatFormat = "stat failed for '%s': %w"
)

// Execute runs the pickctx application.
func Execute() error {
	rootCommand := createRootCommand()
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, normalizeCopyFlagArguments(os.Args[1:])))
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand() *cobra.Command {
	var showVersion bool

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.AddCommand(
		createPackCommand(),
		createMapCommand(),
		createModelsCommand(),
		createConfigCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// pathOptions stores configuration for traversal flags shared by pack and map.
type pathOptions struct {
	exclusionPatterns []string
	disableGitignore  bool
	showHidden        bool
	followSymlinks    bool
}

type tokenOptions struct {
	enabled       bool
	model         string
	tokenizerFile string
}

type packOptions struct {
	paths       pathOptions
	tokens      tokenOptions
	selectPaths []string
	copyOutput  bool
	mapOnly     bool
	jsonOutput  bool
	summary     bool
}

// addPathFlags registers traversal flags on the command.
func addPathFlags(command *cobra.Command, options *pathOptions) {
	command.Flags().StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	registerBooleanFlag(command.Flags(), &options.disableGitignore, noGitignoreFlagName, false, disableGitignoreFlagDescription)
	registerBooleanFlag(command.Flags(), &options.showHidden, hiddenFlagName, false, hiddenFlagDescription)
	registerBooleanFlag(command.Flags(), &options.followSymlinks, followSymlinksFlagName, false, followSymlinksFlagDescription)
}

// addTokenFlags registers token counting flags on the command.
func addTokenFlags(command *cobra.Command, options *tokenOptions) {
	registerBooleanFlag(command.Flags(), &options.enabled, tokensFlagName, false, tokensFlagDescription)
	command.Flags().StringVar(&options.model, modelFlagName, "", modelFlagDescription)
	command.Flags().StringVar(&options.tokenizerFile, tokenizerFileFlagName, "", tokenizerFileFlagDescription)
}

// registerRunFlags binds the flags shared by the pack and map commands. The
// map command has no map-only flag and defaults the summary off.
func registerRunFlags(command *cobra.Command, options *packOptions, mapCommand bool) {
	addPathFlags(command, &options.paths)
	addTokenFlags(command, &options.tokens)
	command.Flags().StringArrayVar(&options.selectPaths, selectFlagName, nil, selectFlagDescription)
	registerCopyFlag(command.Flags(), &options.copyOutput)
	if !mapCommand {
		registerBooleanFlag(command.Flags(), &options.mapOnly, mapOnlyFlagName, false, mapOnlyFlagDescription)
	}
	registerBooleanFlag(command.Flags(), &options.jsonOutput, jsonFlagName, false, jsonFlagDescription)
	registerBooleanFlag(command.Flags(), &options.summary, summaryFlagName, !mapCommand, summaryFlagDescription)
}

// createPackCommand returns the pack subcommand.
func createPackCommand() *cobra.Command {
	var options packOptions

	packCommand := &cobra.Command{
		Use:     packUse,
		Aliases: []string{packAlias},
		Short:   packShortDescription,
		Long:    packLongDescription,
		Example: packUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runPackCommand(command, arguments, &options, false)
		},
	}

	registerRunFlags(packCommand, &options, false)
	return packCommand
}

// createMapCommand returns the map subcommand.
func createMapCommand() *cobra.Command {
	var options packOptions

	mapCommand := &cobra.Command{
		Use:     mapUse,
		Aliases: []string{mapAlias},
		Short:   mapShortDescription,
		Long:    mapLongDescription,
		Example: mapUsageExample,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return runPackCommand(command, arguments, &options, true)
		},
	}

	registerRunFlags(mapCommand, &options, true)
	return mapCommand
}

// createModelsCommand returns the models subcommand.
func createModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   modelsUse,
		Short: modelsShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return runModels(os.Stdout)
		},
	}
}

// createConfigCommand returns the config subcommand with its init action.
func createConfigCommand() *cobra.Command {
	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
	}
	configCommand.AddCommand(createConfigInitCommand())
	return configCommand
}

func createConfigInitCommand() *cobra.Command {
	var globalTarget bool
	var forceOverwrite bool

	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if globalTarget {
				target = config.InitTargetGlobal
			}
			writtenPath, initializationError := config.InitializeConfiguration(config.InitOptions{
				Target: target,
				Force:  forceOverwrite,
			})
			if initializationError != nil {
				return initializationError
			}
			fmt.Printf(configInitializedFormat, writtenPath)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &globalTarget, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &forceOverwrite, forceFlagName, false, forceFlagDescription)
	return initCommand
}

// runValues is the effective configuration of one pack or map run after
// merging persisted settings, configuration files, and explicit flags, in
// that order of increasing precedence.
type runValues struct {
	exclusionPatterns []string
	useGitignore      bool
	showHidden        bool
	followSymlinks    bool
	summary           bool
	jsonOutput        bool
	copyOutput        bool
	mapOnly           bool
	tokensEnabled     bool
	model             string
	tokenizerFile     string
}

// resolveRunValues merges the three configuration layers. Explicit flags only
// override when the user actually set them, so configuration files keep their
// say over flag defaults.
func resolveRunValues(command *cobra.Command, options *packOptions, commandConfiguration config.CommandConfiguration, persisted settings.Settings) runValues {
	values := runValues{
		exclusionPatterns: utils.DeduplicatePatterns(append(append([]string{}, commandConfiguration.Paths.Exclude...), options.paths.exclusionPatterns...)),
		useGitignore:      persisted.ApplyGitignoreRules,
		showHidden:        persisted.ShowHiddenFiles,
		followSymlinks:    persisted.FollowSymlinks,
		summary:           options.summary,
		jsonOutput:        options.jsonOutput,
		copyOutput:        options.copyOutput,
		mapOnly:           persisted.CopyFileTreeOnly,
		tokensEnabled:     options.tokens.enabled,
		model:             persisted.Model,
		tokenizerFile:     options.tokens.tokenizerFile,
	}

	if commandConfiguration.Paths.UseGitignore != nil {
		values.useGitignore = *commandConfiguration.Paths.UseGitignore
	}
	if commandConfiguration.Paths.ShowHidden != nil {
		values.showHidden = *commandConfiguration.Paths.ShowHidden
	}
	if commandConfiguration.Paths.FollowSymlinks != nil {
		values.followSymlinks = *commandConfiguration.Paths.FollowSymlinks
	}
	if commandConfiguration.Summary != nil {
		values.summary = *commandConfiguration.Summary
	}
	if commandConfiguration.JSON != nil {
		values.jsonOutput = *commandConfiguration.JSON
	}
	if commandConfiguration.Clipboard != nil {
		values.copyOutput = *commandConfiguration.Clipboard
	}
	if commandConfiguration.Tokens.Enabled != nil {
		values.tokensEnabled = *commandConfiguration.Tokens.Enabled
	}
	if commandConfiguration.Tokens.Model != "" {
		values.model = commandConfiguration.Tokens.Model
	}
	if commandConfiguration.Tokens.TokenizerFile != "" {
		values.tokenizerFile = commandConfiguration.Tokens.TokenizerFile
	}

	flags := command.Flags()
	if flags.Changed(noGitignoreFlagName) {
		values.useGitignore = !options.paths.disableGitignore
	}
	if flags.Changed(hiddenFlagName) {
		values.showHidden = options.paths.showHidden
	}
	if flags.Changed(followSymlinksFlagName) {
		values.followSymlinks = options.paths.followSymlinks
	}
	if flags.Changed(summaryFlagName) {
		values.summary = options.summary
	}
	if flags.Changed(jsonFlagName) {
		values.jsonOutput = options.jsonOutput
	}
	if flags.Changed(copyFlagName) {
		values.copyOutput = options.copyOutput
	}
	if flags.Changed(mapOnlyFlagName) {
		values.mapOnly = options.mapOnly
	}
	if flags.Changed(tokensFlagName) {
		values.tokensEnabled = options.tokens.enabled
	}
	if flags.Changed(modelFlagName) {
		values.model = options.tokens.model
	}
	if flags.Changed(tokenizerFileFlagName) {
		values.tokenizerFile = options.tokens.tokenizerFile
	}
	return values
}

// runPackCommand executes the pack or map command against a single root.
func runPackCommand(command *cobra.Command, arguments []string, options *packOptions, mapCommand bool) (err error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}

	applicationConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{WorkingDirectory: workingDirectory})
	if configurationError != nil {
		return configurationError
	}
	commandConfiguration := applicationConfiguration.Pack
	if mapCommand {
		commandConfiguration = applicationConfiguration.Map
	}

	settingsStore, persistedSettings := loadSettings()
	values := resolveRunValues(command, options, commandConfiguration, persistedSettings)
	if mapCommand {
		values.mapOnly = true
	}

	rootArgument := defaultPath
	if len(arguments) > 0 {
		rootArgument = arguments[0]
	}
	validatedRoot, validationError := resolveAndValidateRoot(rootArgument)
	if validationError != nil {
		return validationError
	}

	var tokenCounter tokenizer.Counter
	if values.tokensEnabled {
		createdCounter, resolvedModel, counterError := tokenizer.NewCounter(tokenizer.Config{
			Model:         values.model,
			TokenizerFile: values.tokenizerFile,
		})
		if counterError != nil {
			return counterError
		}
		if values.tokenizerFile == "" && values.model != "" && resolvedModel != values.model {
			fmt.Fprintf(os.Stderr, unknownModelWarningFormat, values.model, resolvedModel)
		}
		tokenCounter = createdCounter
		values.model = resolvedModel
	}

	commandName := types.CommandPack
	if mapCommand {
		commandName = types.CommandMap
	}

	outputFormat := types.FormatText
	if values.jsonOutput {
		outputFormat = types.FormatJSON
	}
	var renderer render.StreamRenderer
	switch outputFormat {
	case types.FormatJSON:
		renderer = render.NewJSONStreamRenderer(os.Stdout)
	default:
		renderer = render.NewRawStreamRenderer(os.Stdout, os.Stderr, values.summary)
	}

	defer func() {
		if flushErr := renderer.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
	}()

	var clipboardSink clipboard.Sink
	if values.copyOutput {
		clipboardSink = clipboard.NewService()
	}

	packError := dispatchPack(context.Background(), stream.PackOptions{
		Command:           commandName,
		Root:              validatedRoot.AbsolutePath,
		SelectPaths:       options.selectPaths,
		ShowHidden:        values.showHidden,
		FollowSymlinks:    values.followSymlinks,
		ApplyIgnoreRules:  true,
		UseGitignoreFiles: values.useGitignore,
		ExtraPatterns:     values.exclusionPatterns,
		TokenCounter:      tokenCounter,
		MapOnly:           values.mapOnly,
	}, renderer, clipboardSink)
	if packError != nil {
		return packError
	}

	persistRunSettings(settingsStore, validatedRoot.AbsolutePath, values)
	return nil
}

// dispatchPack wires the pack producer to the renderer. When a clipboard sink
// is present the document is routed there and the event is marked so the
// renderer prints a confirmation instead of the document.
func dispatchPack(executionContext context.Context, options stream.PackOptions, renderer render.StreamRenderer, clipboardSink clipboard.Sink) error {
	producer := func(streamContext context.Context, events chan<- stream.Event) error {
		return stream.Pack(streamContext, options, events)
	}
	consumer := func(event stream.Event) error {
		if clipboardSink != nil && event.Kind == stream.EventKindDocument && event.Document != nil {
			if copyError := clipboardSink.Write(event.Document.Text); copyError != nil {
				return copyError
			}
			event.Document.CopiedToClipboard = true
		}
		return renderer.Handle(event)
	}
	return dispatchStream(executionContext, producer, consumer)
}

func dispatchStream(
	ctx context.Context,
	produce func(context.Context, chan<- stream.Event) error,
	consume func(stream.Event) error,
) error {
	group, streamCtx := errgroup.WithContext(ctx)
	events := make(chan stream.Event)

	group.Go(func() error {
		defer close(events)
		return produce(streamCtx, events)
	})

	group.Go(func() error {
		for {
			select {
			case <-streamCtx.Done():
				return streamCtx.Err()
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := consume(event); err != nil {
					return err
				}
			}
		}
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runModels lists the model catalog with context limits, marking the default.
func runModels(writer io.Writer) error {
	for _, modelName := range tokenizer.AvailableModels() {
		limitColumn := noTokenLimitPlaceholder
		if tokenLimit := tokenizer.MaxTokens(modelName); tokenLimit > 0 {
			limitColumn = utils.FormatCount(tokenLimit)
		}
		marker := ""
		if modelName == tokenizer.DefaultModel {
			marker = defaultModelMarker
		}
		fmt.Fprintf(writer, modelsRowFormat, modelName, limitColumn, marker)
	}
	return nil
}

// loadSettings opens the persisted settings store. Settings are advisory, so
// failures degrade to defaults with a warning instead of aborting the run.
func loadSettings() (*settings.Store, settings.Settings) {
	settingsStore, storeError := settings.NewStore()
	if storeError != nil {
		fmt.Fprintf(os.Stderr, settingsWarningFormat, storeError)
		return nil, settings.Default()
	}
	persistedSettings, loadError := settingsStore.Load()
	if loadError != nil {
		fmt.Fprintf(os.Stderr, settingsWarningFormat, loadError)
	}
	return settingsStore, persistedSettings
}

// persistRunSettings records the directory and model of a successful run. The
// model is only remembered when it names a catalog entry, so tokenizer file
// runs do not clobber the persisted choice.
func persistRunSettings(settingsStore *settings.Store, rootPath string, values runValues) {
	if settingsStore == nil {
		return
	}
	if _, updateError := settingsStore.Update(func(currentSettings *settings.Settings) {
		currentSettings.LastDirectory = rootPath
		if values.tokensEnabled && values.tokenizerFile == "" && tokenizer.IsKnownModel(values.model) {
			currentSettings.Model = values.model
		}
	}); updateError != nil {
		fmt.Fprintf(os.Stderr, saveSettingsWarningFormat, updateError)
	}
}

// resolveAndValidateRoot converts the root argument to absolute form and
// verifies it is an existing directory.
func resolveAndValidateRoot(inputPath string) (types.ValidatedPath, error) {
	absolutePath, absolutePathError := filepath.Abs(inputPath)
	if absolutePathError != nil {
		return types.ValidatedPath{}, fmt.Errorf(errorAbsolutePathFormat, inputPath, absolutePathError)
	}
	cleanPath := filepath.Clean(absolutePath)
	info, fileStatusError := os.Stat(cleanPath)
	if fileStatusError != nil {
		if os.IsNotExist(fileStatusError) {
			return types.ValidatedPath{}, fmt.Errorf(errorPathMissingFormat, inputPath)
		}
		return types.ValidatedPath{}, fmt.Errorf(errorStatFormat, inputPath, fileStatusError)
	}
	if !info.IsDir() {
		return types.ValidatedPath{}, fmt.Errorf(errorNotDirectoryFormat, inputPath)
	}
	return types.ValidatedPath{AbsolutePath: cleanPath, IsDir: true}, nil
}
