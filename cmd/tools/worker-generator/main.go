// cmd/tools/worker-generator/main.go
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"community-notifications/pkg/registry"
)

// WorkerData holds data for templates
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Category     string
	Description  string
	Timeout      string // Go expression, e.g. "10 * time.Second"
	InputFields  string
	OutputFields string
	NeedsTime    bool
	ErrorCodes   []string
}

// fields every notification job carries; the templates declare them
var callerFields = map[string]bool{"caller": true, "accessToken": true}

// parseSchema extracts properties from a JSON schema object
func parseSchema(schemaObj map[string]interface{}) map[string]interface{} {
	if props, ok := schemaObj["properties"].(map[string]interface{}); ok {
		return props
	}
	return map[string]interface{}{}
}

// goTypeFromJSONType maps JSON schema types to Go types
func goTypeFromJSONType(jsonType interface{}, jsonFormat interface{}) string {
	jt, ok := jsonType.(string)
	if !ok {
		return "interface{}"
	}
	switch jt {
	case "string":
		if jf, ok := jsonFormat.(string); ok && jf == "date-time" {
			return "time.Time"
		}
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	default:
		return "interface{}"
	}
}

// goFieldName exports a JSON property name, keeping common initialisms upper-case.
func goFieldName(prop string) string {
	name := upperFirst(prop)
	for _, suffix := range []string{"Id", "Url"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix) + strings.ToUpper(suffix)
		}
	}
	return name
}

// generateStructFields renders struct fields for schema properties in name order
func generateStructFields(properties map[string]interface{}, skip map[string]bool) string {
	names := make([]string, 0, len(properties))
	for prop := range properties {
		if !skip[prop] {
			names = append(names, prop)
		}
	}
	sort.Strings(names)

	var fields []string
	for _, prop := range names {
		details, ok := properties[prop].(map[string]interface{})
		if !ok {
			continue
		}
		field := fmt.Sprintf("\t%s %s `json:\"%s,omitempty\"`", goFieldName(prop), goTypeFromJSONType(details["type"], details["format"]), prop)
		if desc, ok := details["description"].(string); ok && desc != "" {
			field += " // " + desc
		}
		fields = append(fields, field)
	}
	return strings.Join(fields, "\n")
}

// upperFirst makes the first character uppercase
func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func packageName(taskType string) string {
	return strings.ToLower(strings.NewReplacer("-", "", "_", "", ".", "").Replace(taskType))
}

// timeoutExpr turns a registry timeout into a Go duration expression, 30s when unset.
func timeoutExpr(timeout string) (string, error) {
	d := 30 * time.Second
	if timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return "", fmt.Errorf("invalid timeout %q: %w", timeout, err)
		}
		d = parsed
	}
	switch {
	case d%time.Minute == 0:
		return fmt.Sprintf("%d * time.Minute", d/time.Minute), nil
	case d%time.Second == 0:
		return fmt.Sprintf("%d * time.Second", d/time.Second), nil
	default:
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond), nil
	}
}

func newWorkerData(act *registry.Activity) (*WorkerData, error) {
	timeout, err := timeoutExpr(act.Timeout)
	if err != nil {
		return nil, err
	}
	data := &WorkerData{
		Name:         act.DisplayName,
		PackageName:  packageName(act.TaskType),
		TaskType:     act.TaskType,
		Category:     act.Category,
		Description:  act.Description,
		Timeout:      timeout,
		InputFields:  generateStructFields(parseSchema(act.InputSchema), callerFields),
		OutputFields: generateStructFields(parseSchema(act.OutputSchema), nil),
		ErrorCodes:   act.ErrorCodes,
	}
	data.NeedsTime = strings.Contains(data.InputFields+data.OutputFields, "time.Time")
	return data, nil
}

const handlerTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler.go
package {{ .PackageName }}

import (
	"context"

	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/shared"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "{{ .TaskType }}"
)

// Service runs {{ .Name }} for an authenticated caller.
type Service interface {
	Execute(ctx context.Context, session notification.Session, input *Input) (*Output, error)
}

type Handler struct {
	config  *Config
	service Service
	job     *shared.Job
}

func NewHandler(config *Config, service Service, deps shared.Deps) *Handler {
	return &Handler{
		config:  config,
		service: service,
		job:     shared.NewJob(TaskType, config.Timeout, deps),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.job.Run(client, job, func(ctx context.Context) (interface{}, error) {
		var input Input
		if err := h.job.Decode(job, &input); err != nil {
			return nil, err
		}
		return h.execute(ctx, &input)
	})
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	session, err := h.job.Sessions().Resolve(ctx, input.Caller, input.AccessToken)
	if err != nil {
		return nil, err
	}
	return h.service.Execute(ctx, session, input)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
`

const configTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/config.go
package {{ .PackageName }}

import (
	"time"

	"community-notifications/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = {{ .Timeout }}
	}
	return &Config{Timeout: timeout}
}
`

const modelsTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/models.go
package {{ .PackageName }}

import (
{{ if .NeedsTime }}	"time"

{{ end }}	"community-notifications/internal/workers/notification/shared"
)

{{ if .Description }}// Input: {{ .Description }}
{{ end }}type Input struct {
	Caller      *shared.Caller ` + "`json:\"caller,omitempty\"`" + `
	AccessToken string         ` + "`json:\"accessToken,omitempty\"`" + `
{{ .InputFields }}
}

type Output struct {
{{ .OutputFields }}
}
`

const testTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler_test.go
package {{ .PackageName }}

import (
	"context"
	"testing"
	"time"

	apperrors "community-notifications/internal/common/errors"
	"community-notifications/internal/notification"
	"community-notifications/internal/workers/notification/workertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	ExecuteFunc func(ctx context.Context, session notification.Session, input *Input) (*Output, error)
}

func (m *MockService) Execute(ctx context.Context, session notification.Session, input *Input) (*Output, error) {
	return m.ExecuteFunc(ctx, session, input)
}

func createTestHandler(t *testing.T, service Service) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, service, workertest.New(t).Deps)
}

func TestHandler_Execute(t *testing.T) {
	var got notification.Session
	handler := createTestHandler(t, &MockService{
		ExecuteFunc: func(_ context.Context, session notification.Session, _ *Input) (*Output, error) {
			got = session
			return &Output{}, nil
		},
	})

	out, err := handler.Execute(context.Background(), &Input{Caller: workertest.Treasurer})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, "treasurer-1", got.CallerID)
}

func TestHandler_Execute_MissingIdentity(t *testing.T) {
	handler := createTestHandler(t, &MockService{})

	_, err := handler.Execute(context.Background(), &Input{})
	assert.Equal(t, apperrors.ErrCodeAuthenticationFailed, workertest.Code(err))
}
`

var templates = []struct {
	file string
	body string
}{
	{"config.go", configTemplate},
	{"models.go", modelsTemplate},
	{"handler.go", handlerTemplate},
	{"handler_test.go", testTemplate},
}

// generate writes a worker scaffold for taskType under outDir/<taskType>. Existing workers
// are left alone unless force is set.
func generate(w io.Writer, reg *registry.ActivityRegistry, taskType, outDir string, force bool) (string, error) {
	act, ok := reg.Find(taskType)
	if !ok {
		return "", fmt.Errorf("activity with task type %s not found", taskType)
	}
	data, err := newWorkerData(act)
	if err != nil {
		return "", fmt.Errorf("activity %s: %w", act.ID, err)
	}

	workerDir := filepath.Join(outDir, act.TaskType)
	if _, err := os.Stat(workerDir); err == nil && !force {
		return "", fmt.Errorf("%s already exists, use -force to overwrite", workerDir)
	}
	if err := os.MkdirAll(workerDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", workerDir, err)
	}

	for _, t := range templates {
		tmpl, err := template.New(t.file).Parse(t.body)
		if err != nil {
			return "", fmt.Errorf("parsing template %s: %w", t.file, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("rendering %s: %w", t.file, err)
		}
		src, err := format.Source(buf.Bytes())
		if err != nil {
			return "", fmt.Errorf("formatting %s: %w", t.file, err)
		}

		path := filepath.Join(workerDir, t.file)
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return "", fmt.Errorf("writing %s: %w", path, err)
		}
		fmt.Fprintf(w, "Generated %s\n", path)
	}
	return workerDir, nil
}

func main() {
	path := flag.String("path", "configs/activity-registry.json", "Path to registry file")
	taskType := flag.String("taskType", "", "Task type of the activity to scaffold")
	outDir := flag.String("out", "", "Parent directory (default internal/workers/<category>)")
	force := flag.Bool("force", false, "Overwrite an existing worker directory")
	flag.Parse()

	if *taskType == "" {
		fmt.Println("Error: taskType is required.")
		flag.Usage()
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*path)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	dir := *outDir
	if dir == "" {
		category := "notification"
		if act, ok := reg.Find(*taskType); ok && act.Category != "" {
			category = act.Category
		}
		dir = filepath.Join("internal", "workers", category)
	}

	workerDir, err := generate(os.Stdout, reg, *taskType, dir, *force)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nWorker scaffold generated at %s\n", workerDir)
	fmt.Println("Next steps:")
	fmt.Println("  1. Implement the Service on notification.Service")
	fmt.Println("  2. Register the handler in cmd/worker-manager/main.go")
	fmt.Println("  3. Add the worker to configs/config.yaml")
}
