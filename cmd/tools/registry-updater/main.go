// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"community-notifications/internal/common/validation"
	"community-notifications/pkg/registry"
)

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ExitOnError)
		path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
		fs.Parse(os.Args[2:])
		err = validateRegistry(os.Stdout, *path)

	case "check":
		fs := flag.NewFlagSet("check", flag.ExitOnError)
		path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
		taskType := fs.String("taskType", "", "Task type whose input schema to apply")
		vars := fs.String("vars", "", "JSON file holding sample job variables")
		fs.Parse(os.Args[2:])
		if *taskType == "" || *vars == "" {
			fmt.Println("Error: taskType and vars are required for check.")
			fs.Usage()
			os.Exit(1)
		}
		err = checkVariables(os.Stdout, *path, *taskType, *vars)

	case "update":
		fs := flag.NewFlagSet("update", flag.ExitOnError)
		path := fs.String("path", "configs/activity-registry.json", "Path to registry file")
		id := fs.String("id", "", "Activity ID to update")
		field := fs.String("field", "", "Field to update (version, displayName, description, timeout, retries)")
		value := fs.String("value", "", "New value for the field")
		fs.Parse(os.Args[2:])
		if *id == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			fs.Usage()
			os.Exit(1)
		}
		if err = updateActivity(*path, *id, *field, *value); err == nil {
			fmt.Printf("Updated activity %s, field %s to %s\n", *id, *field, *value)
		}

	default:
		help()
		return
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// validateRegistry loads the registry and compiles every input schema.
func validateRegistry(out io.Writer, path string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if len(reg.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}
	if _, err := validation.NewSchemaValidator(reg); err != nil {
		return err
	}
	for _, a := range reg.Activities {
		if _, err := time.ParseDuration(a.Timeout); a.Timeout != "" && err != nil {
			return fmt.Errorf("activity %s: timeout %q: %w", a.ID, a.Timeout, err)
		}
	}

	fmt.Fprintf(out, "Registry validation passed. Found %d activities.\n", len(reg.Activities))
	return nil
}

// checkVariables runs a sample variables document through a task type's schema, the same
// check a worker applies before touching a job.
func checkVariables(out io.Writer, path, taskType, varsPath string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	if _, ok := reg.Find(taskType); !ok {
		return fmt.Errorf("task type %s is not registered", taskType)
	}
	v, err := validation.NewSchemaValidator(reg)
	if err != nil {
		return err
	}
	payload, err := os.ReadFile(varsPath)
	if err != nil {
		return fmt.Errorf("read variables: %w", err)
	}

	result := v.ValidateJSON(taskType, string(payload))
	if !result.Valid {
		for _, msg := range result.GetErrorMessages() {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
		return fmt.Errorf("%d schema violations for %s", len(result.Errors), taskType)
	}
	fmt.Fprintf(out, "Variables are valid for %s.\n", taskType)
	return nil
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	var activity *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			activity = &reg.Activities[i]
			break
		}
	}
	if activity == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return saveRegistry(reg, path)
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func help() {
	fmt.Println(`
Usage: registry-updater <command> [flags]

Commands:
  validate  Load the registry and compile every input schema
  check     Validate sample job variables against a task type's input schema
  update    Update an existing activity's field
  help      Show this help message

Examples:
  registry-updater validate -path configs/activity-registry.json
  registry-updater check -taskType broadcast-notification -vars vars.json
  registry-updater update -id notification.fanout.broadcast -field timeout -value 90s`)
}
