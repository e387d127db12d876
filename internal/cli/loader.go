package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/storyviz/internal/catalog"
	"github.com/roach88/storyviz/internal/compiler"
	"github.com/roach88/storyviz/internal/component"
	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/scene"
)

// LoadMode controls how errors are handled during project loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Project directory layout.
const (
	ScenesDir      = "scenes"
	StoryboardsDir = "storyboards"

	// StoryboardGroup is the catalog group every storyboard is filed under.
	StoryboardGroup = "storyboard"
)

// Project is a directory of scene and storyboard documents. Scenes are
// catalogued by algorithm, storyboards under StoryboardGroup.
type Project struct {
	Dir         string
	Scenes      *catalog.Catalog[*ir.SceneConfig]
	Storyboards *catalog.Catalog[*ir.Storyboard]
	Paths       map[string]string // document name -> file path
	FileCount   int
}

// LoadError represents an error that occurred during project loading.
type LoadError struct {
	Path    string
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No documents found
	ErrCodeLoadFailed  = "E004" // Document decode failed
	ErrCodeNotFound    = "E005" // Path or document not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDuplicate   = "E008" // Two documents share a name
)

// LoadProject loads every document under dir/scenes and dir/storyboards.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadProject(dir string, mode LoadMode) (*Project, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Path: dir, Code: ErrCodeNotFound, Message: fmt.Sprintf("project directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Path: dir, Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing project directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Path: dir, Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	sceneFiles, err := FindDocuments(filepath.Join(dir, ScenesDir))
	if err != nil {
		return nil, []error{&LoadError{Path: dir, Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning scenes: %v", err)}}
	}
	storyboardFiles, err := FindDocuments(filepath.Join(dir, StoryboardsDir))
	if err != nil {
		return nil, []error{&LoadError{Path: dir, Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning storyboards: %v", err)}}
	}
	if len(sceneFiles)+len(storyboardFiles) == 0 {
		return nil, []error{&LoadError{Path: dir, Code: ErrCodeNoFiles, Message: fmt.Sprintf("no documents found in %s/%s or %s/%s", dir, ScenesDir, dir, StoryboardsDir)}}
	}

	p := &Project{
		Dir:         dir,
		Scenes:      catalog.New[*ir.SceneConfig](),
		Storyboards: catalog.New[*ir.Storyboard](),
		Paths:       make(map[string]string),
		FileCount:   len(sceneFiles) + len(storyboardFiles),
	}

	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	for _, path := range sceneFiles {
		sc, err := compiler.LoadScene(path)
		if err != nil {
			if fail(convertLoadError(path, err)) {
				return p, errs
			}
			continue
		}
		name := documentName(sc.Name, path)
		if err := p.Scenes.Register(sc.Algorithm, name, sc); err != nil {
			if fail(duplicateError(path, err)) {
				return p, errs
			}
			continue
		}
		p.Paths[name] = path
	}

	for _, path := range storyboardFiles {
		sb, err := compiler.LoadStoryboard(path)
		if err != nil {
			if fail(convertLoadError(path, err)) {
				return p, errs
			}
			continue
		}
		name := documentName(sb.Name, path)
		if err := p.Storyboards.Register(StoryboardGroup, name, sb); err != nil {
			if fail(duplicateError(path, err)) {
				return p, errs
			}
			continue
		}
		p.Paths[name] = path
	}

	return p, errs
}

// Scene returns the scene named name, whatever algorithm it targets.
func (p *Project) Scene(name string) (*ir.SceneConfig, error) {
	sc, _, err := p.Scenes.Find(name)
	return sc, err
}

// Storyboard returns the storyboard named name.
func (p *Project) Storyboard(name string) (*ir.Storyboard, error) {
	return p.Storyboards.Lookup(StoryboardGroup, name)
}

// FindDocuments returns the scene and storyboard files below dir, sorted.
// A missing dir yields no files.
func FindDocuments(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if _, err := compiler.FormatOf(path); err == nil {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// documentName is the declared name, or the file stem when none is set.
func documentName(declared, path string) string {
	if declared != "" {
		return declared
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// convertLoadError converts a compiler error to a LoadError with position info.
func convertLoadError(path string, err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Path:    path,
			Code:    ErrCodeBuildFailed,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return &LoadError{Path: path, Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &LoadError{Path: path, Code: ErrCodeLoadFailed, Message: err.Error()}
}

func duplicateError(path string, err error) *LoadError {
	var dup *catalog.DuplicateError
	if errors.As(err, &dup) {
		return &LoadError{Path: path, Code: ErrCodeDuplicate, Message: dup.Error()}
	}
	return &LoadError{Path: path, Code: ErrCodeGeneric, Message: err.Error()}
}

// resolveDocuments loads the scene and storyboard named by a command's
// arguments. Without a project, the arguments are file paths; with one, they
// are document names. baseDir is where recorded event files resolve.
func resolveDocuments(projectDir, sceneArg, storyboardArg string) (sc *ir.SceneConfig, sb *ir.Storyboard, baseDir string, err error) {
	if projectDir == "" {
		sc, err = compiler.LoadScene(sceneArg)
		if err != nil {
			return nil, nil, "", convertLoadError(sceneArg, err)
		}
		sb, err = compiler.LoadStoryboard(storyboardArg)
		if err != nil {
			return nil, nil, "", convertLoadError(storyboardArg, err)
		}
		return sc, sb, filepath.Dir(sceneArg), nil
	}

	p, errs := LoadProject(projectDir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, nil, "", errs[0]
	}
	if sc, err = p.Scene(sceneArg); err != nil {
		return nil, nil, "", &LoadError{Path: projectDir, Code: ErrCodeNotFound, Message: err.Error()}
	}
	if sb, err = p.Storyboard(storyboardArg); err != nil {
		return nil, nil, "", &LoadError{Path: projectDir, Code: ErrCodeNotFound, Message: err.Error()}
	}
	return sc, sb, projectDir, nil
}

// componentTypes is the type table the CLI renders and validates with.
// Unknown component types are errors.
func componentTypes() *component.Types {
	return component.BuiltinTypes()
}

// beatActions lists the actions a storyboard beat may name.
func beatActions() []string {
	return scene.New(&ir.SceneConfig{}).Actions()
}

// validationOptions are the compiler options matching componentTypes and
// beatActions.
func validationOptions() compiler.Options {
	return compiler.Options{
		Types:   componentTypes(),
		Actions: beatActions(),
	}
}
