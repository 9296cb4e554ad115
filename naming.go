package connect_archiver

import (
	"errors"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/alanbriolat/connect-archiver/util"
)

const OutputExtension = ".mp4"

var ErrInvalidOutputName = errors.New("output name is empty after sanitising")

// OutputConfig decides where a reconstructed recording ends up.
type OutputConfig struct {
	TargetDir          string
	TargetFileTemplate *template.Template
}

func NewOutputConfig(targetDir string) OutputConfig {
	if targetDir == "" {
		targetDir = "."
	}
	return OutputConfig{
		TargetDir:          targetDir,
		TargetFileTemplate: template.Must(template.New("target_file").Parse("recording_{{.ID}}")),
	}
}

// Filename returns the sanitised output filename, using custom if given, otherwise the template applied to the
// sanitised recording ID. The name always ends in OutputExtension; an existing extension in another letter case is
// replaced.
func (c OutputConfig) Filename(custom string, recordingID string) (string, error) {
	name := strings.TrimSpace(custom)
	if name == "" {
		args := targetFileTemplateArgs{ID: util.SanitizeToken(recordingID)}
		builder := strings.Builder{}
		if err := c.TargetFileTemplate.Execute(&builder, &args); err != nil {
			return "", err
		}
		name = builder.String()
	}
	if strings.HasSuffix(strings.ToLower(name), OutputExtension) {
		name = name[:len(name)-len(OutputExtension)]
	}
	stem := util.SanitizeFileName(name)
	if stem == "" {
		return "", ErrInvalidOutputName
	}
	return stem + OutputExtension, nil
}

// DestinationPath is Filename joined onto TargetDir.
func (c OutputConfig) DestinationPath(custom string, recordingID string) (string, error) {
	name, err := c.Filename(custom, recordingID)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.TargetDir, name), nil
}

type targetFileTemplateArgs struct {
	ID string
}
