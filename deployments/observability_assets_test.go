package deployments

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Record string            `yaml:"record"`
			Alert  string            `yaml:"alert"`
			Expr   string            `yaml:"expr"`
			Labels map[string]string `yaml:"labels"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

// exportedMetrics lists the series the API process registers.
var exportedMetrics = map[string]bool{
	"querybridge_http_requests_total":           true,
	"querybridge_http_request_duration_seconds": true,
	"querybridge_translations_total":            true,
	"querybridge_translation_latency_ms":        true,
	"querybridge_executions_total":              true,
	"querybridge_execution_latency_ms":          true,
	"querybridge_rows_returned_total":           true,
	"querybridge_admin_operations_total":        true,
}

var metricRef = regexp.MustCompile(`querybridge_[a-z_]+`)

func TestRecordingRulesReferenceExportedMetrics(t *testing.T) {
	rules := loadRules(t, "querybridge_recording_rules.yaml")

	records := 0
	for _, group := range rules.Groups {
		for _, rule := range group.Rules {
			if rule.Record == "" {
				t.Fatalf("recording group %q has a rule without record", group.Name)
			}
			if !strings.HasPrefix(rule.Record, "querybridge:") {
				t.Fatalf("record %q must use the querybridge: prefix", rule.Record)
			}
			for _, ref := range metricRef.FindAllString(rule.Expr, -1) {
				base := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(ref, "_bucket"), "_sum"), "_count")
				if !exportedMetrics[base] {
					t.Fatalf("record %q references unknown metric %q", rule.Record, ref)
				}
			}
			records++
		}
	}
	if records == 0 {
		t.Fatal("no recording rules found")
	}
}

func TestAlertRulesUseRecordedSeries(t *testing.T) {
	recorded := map[string]bool{}
	for _, group := range loadRules(t, "querybridge_recording_rules.yaml").Groups {
		for _, rule := range group.Rules {
			recorded[rule.Record] = true
		}
	}

	recordRef := regexp.MustCompile(`querybridge:[a-z0-9_]+`)
	alerts := 0
	for _, group := range loadRules(t, "querybridge_rules.yaml").Groups {
		for _, rule := range group.Rules {
			if rule.Alert == "" {
				t.Fatalf("alert group %q has a rule without alert name", group.Name)
			}
			severity := rule.Labels["severity"]
			if severity != "warning" && severity != "critical" {
				t.Fatalf("alert %q severity = %q", rule.Alert, severity)
			}
			for _, ref := range recordRef.FindAllString(rule.Expr, -1) {
				if !recorded[ref] {
					t.Fatalf("alert %q references unrecorded series %q", rule.Alert, ref)
				}
			}
			alerts++
		}
	}
	if alerts == 0 {
		t.Fatal("no alert rules found")
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	path := filepath.Join(repoRoot(t), "deployments", "observability", "prometheus", "prometheus-scrape.example.yaml")
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scrape example: %v", err)
	}
	text := string(content)

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"querybridge_rules.yaml",
		"querybridge_recording_rules.yaml",
		"job_name: querybridge-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func loadRules(t *testing.T, name string) ruleFile {
	t.Helper()
	path := filepath.Join(repoRoot(t), "deployments", "observability", "prometheus", name)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var rules ruleFile
	if err := yaml.Unmarshal(content, &rules); err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return rules
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
