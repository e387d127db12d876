package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/storyviz/internal/compiler"
	"github.com/roach88/storyviz/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Documents int                        `json:"documents"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <project-dir> | <scene> <storyboard>",
		Short: "Validate scenes and storyboards without rendering",
		Long: `Validate scene and storyboard documents without rendering them.

With one argument, every document under <project-dir>/scenes and
<project-dir>/storyboards is checked. With two, the scene and storyboard
files are checked together, so storyboard templates are resolved against
the scene configuration.

All errors are reported, not just the first.

Examples:
  storyviz validate ./project
  storyviz validate scenes/bfs.yaml storyboards/intro.yaml --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runValidateProject(rootOpts, args[0], cmd)
			}
			return runValidatePair(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runValidateProject(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	project, loadErrors := LoadProject(dir, LoadModeCollectAll)
	if project == nil {
		return outputLoadFailure(formatter, loadErrors[0])
	}
	formatter.VerboseLog("Found %d document(s) in %s", project.FileCount, dir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, loadValidationError(err))
	}

	vopts := validationOptions()
	for _, group := range project.Scenes.Groups() {
		for _, name := range project.Scenes.Names(group) {
			formatter.VerboseLog("Validating scene: %s (%s)", name, group)
			sc, _ := project.Scenes.Lookup(group, name)
			validationErrors = append(validationErrors, prefixed(name, compiler.Validate(sc, nil, vopts))...)
		}
	}
	for _, name := range project.Storyboards.Names(StoryboardGroup) {
		formatter.VerboseLog("Validating storyboard: %s", name)
		sb, _ := project.Storyboard(name)
		validationErrors = append(validationErrors, prefixed(name, compiler.Validate(nil, sb, vopts))...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, project.FileCount)
}

func runValidatePair(opts *RootOptions, scenePath, storyboardPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var (
		validationErrors []compiler.ValidationError
		sc               *ir.SceneConfig
		sb               *ir.Storyboard
		err              error
	)
	if sc, err = compiler.LoadScene(scenePath); err != nil {
		loadErr := convertLoadError(scenePath, err)
		if loadErr.Code == ErrCodeNotFound {
			return outputLoadFailure(formatter, loadErr)
		}
		validationErrors = append(validationErrors, loadValidationError(loadErr))
	}
	if sb, err = compiler.LoadStoryboard(storyboardPath); err != nil {
		loadErr := convertLoadError(storyboardPath, err)
		if loadErr.Code == ErrCodeNotFound {
			return outputLoadFailure(formatter, loadErr)
		}
		validationErrors = append(validationErrors, loadValidationError(loadErr))
	}

	formatter.VerboseLog("Validating %s with %s", scenePath, storyboardPath)
	validationErrors = append(validationErrors, compiler.Validate(sc, sb, validationOptions())...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, 2)
}

// prefixed qualifies each error's field with the document name.
func prefixed(name string, errs []compiler.ValidationError) []compiler.ValidationError {
	for i := range errs {
		errs[i].Field = name + "." + errs[i].Field
	}
	return errs
}

// loadValidationError converts a load error into a validation error.
func loadValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return compiler.ValidationError{
			Field:   loadErr.Path,
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    loadErr.Line(),
		}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, documents int) error {
	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Documents: documents})
	}

	fmt.Fprintf(formatter.Writer, "✓ All documents valid (%d)\n", documents)
	return nil
}

// outputLoadFailure reports an error that prevented validation entirely.
func outputLoadFailure(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		result := ValidationResult{Valid: false, Errors: errs}
		if err := formatter.Fail(errs[0].Code, errs[0].Message, result, ""); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s (line %d)\n", err.Field, err.Line)
		} else {
			fmt.Fprintln(formatter.Writer, err.Field)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return failure
}
