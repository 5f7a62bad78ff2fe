package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestLogEditFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: "debug", Output: &buf})

	log.LogEdit("toggle", "book", 3*time.Millisecond, 2, nil)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if line["service"] != "parajoin" || line["operation"] != "toggle" || line["doc"] != "book" {
		t.Errorf("unexpected fields: %v", line)
	}
	if line["changed"] != float64(2) {
		t.Errorf("changed = %v, want 2", line["changed"])
	}
}

func TestLogEditError(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: "info", Output: &buf})

	log.LogEdit("toggle", "book", time.Millisecond, 0, errors.New("boom"))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "error" || line["error"] != "boom" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestEditLoggerAddsContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: "info", Output: &buf}).EditLogger("rebuild", "book")

	log.Info("done").Send()

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["component"] != "engine" || line["operation"] != "rebuild" || line["doc"] != "book" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: "info", Output: &buf}).WithFields(map[string]interface{}{
		"separator":    " ",
		"redis_leases": true,
	})

	log.Info("Engine configured").Send()

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["separator"] != " " || line["redis_leases"] != true || line["msg"] != "Engine configured" {
		t.Errorf("unexpected fields: %v", line)
	}
}

func TestDebugFilteredByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: "info", Output: &buf}).GrpcLogger("/parajoin.v1.JoinService/Stats")

	log.Debug("gRPC request received").Send()
	if buf.Len() != 0 {
		t.Errorf("debug line written at info level: %s", buf.String())
	}

	log = NewLogger(Config{Level: "debug", Output: &buf}).GrpcLogger("/parajoin.v1.JoinService/Stats")
	log.Debug("gRPC request received").Send()

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "debug" || line["component"] != "grpc" || line["method"] != "/parajoin.v1.JoinService/Stats" {
		t.Errorf("unexpected fields: %v", line)
	}
}
