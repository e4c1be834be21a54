package apismith

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Sutto/api-smith/smash"
)

func TestGetInstance(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"person": {"name": "Ada", "age": 36}}`)
	client := New(WithBaseURL(server.URL), WithResponseContainer("person"))

	inst, err := client.GetInstance(context.Background(), personSchema(), "people/1")
	if err != nil {
		t.Fatalf("GetInstance() returned error: %v", err)
	}
	if inst == nil {
		t.Fatal("GetInstance() returned nil instance")
	}
	if got := inst.Fetch("name"); got != "Ada" {
		t.Errorf("Expected name Ada, got %v", got)
	}
	if got := inst.Fetch("age"); got != 36 {
		t.Errorf("Expected age 36, got %v (%T)", got, got)
	}
}

func TestGetInstanceIgnoresRequestTransform(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"name": "Ada"}`)
	client := New(WithBaseURL(server.URL))

	other := smash.NewSchema("Other")
	inst, err := client.GetInstance(context.Background(), personSchema(), "x", WithTransform(other))
	if err != nil {
		t.Fatalf("GetInstance() returned error: %v", err)
	}
	if name := inst.Schema().Name(); name != "Person" {
		t.Errorf("Expected Person instance, got %s", name)
	}
}

func TestGetInstanceConstructionError(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"age": 3}`)
	registry := prometheus.NewRegistry()
	client := New(WithBaseURL(server.URL), WithMetricsRegistry(registry))

	_, err := client.GetInstance(context.Background(), personSchema(), "people/1")
	if err == nil {
		t.Fatal("Expected error for missing required property")
	}

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ClientError, got %T", err)
	}
	if ce.Type != ErrorTypeTransform {
		t.Errorf("Expected type %s, got %s", ErrorTypeTransform, ce.Type)
	}
	if !errors.Is(err, smash.ErrMissingProperty) {
		t.Errorf("Expected ErrMissingProperty in chain, got %v", err)
	}

	count, gerr := testutil.GatherAndCount(registry, "apismith_transforms_total")
	if gerr != nil {
		t.Fatalf("GatherAndCount() returned error: %v", gerr)
	}
	if count != 1 {
		t.Errorf("Expected 1 transform series, got %d", count)
	}
}

func TestGetInstanceNotCoercible(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `[1, 2]`)
	client := New(WithBaseURL(server.URL))

	if _, err := client.GetInstance(context.Background(), personSchema(), "x"); !errors.Is(err, ErrNotCoercible) {
		t.Errorf("Expected ErrNotCoercible, got %v", err)
	}
}

func TestGetInstanceEmptyContainer(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{}`)
	client := New(WithBaseURL(server.URL))

	inst, err := client.GetInstance(context.Background(), personSchema(), "x", WithContainer("missing"))
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
	if inst != nil {
		t.Errorf("Expected nil instance, got %v", inst)
	}

	people, err := client.GetInstances(context.Background(), personSchema(), "x", WithContainer("missing"))
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse from GetInstances, got %v", err)
	}
	if people != nil {
		t.Errorf("Expected nil slice, got %v", people)
	}
}

func TestPostInstance(t *testing.T) {
	server, seen := recordingServer(t, http.StatusCreated, `{"name": "Grace"}`)
	client := New(WithBaseURL(server.URL))

	inst, err := client.PostInstance(context.Background(), personSchema(), "people", WithExtraBody(map[string]any{"name": "Grace"}))
	if err != nil {
		t.Fatalf("PostInstance() returned error: %v", err)
	}
	if got := inst.Fetch("name"); got != "Grace" {
		t.Errorf("Expected name Grace, got %v", got)
	}
	if method := (*seen)[0].Method; method != http.MethodPost {
		t.Errorf("Expected POST, got %s", method)
	}
}

func TestGetInstances(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"items": [{"name": "Ada"}, "skip", {"name": "Grace"}]}`)
	client := New(WithBaseURL(server.URL), WithResponseContainer("items"))

	people, err := client.GetInstances(context.Background(), personSchema(), "people")
	if err != nil {
		t.Fatalf("GetInstances() returned error: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("Expected 2 instances, got %d", len(people))
	}
	if got := people[1].Fetch("name"); got != "Grace" {
		t.Errorf("Expected Grace second, got %v", got)
	}
}

func TestGetInstancesSingleMapping(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"name": "Ada"}`)
	client := New(WithBaseURL(server.URL))

	people, err := client.GetInstances(context.Background(), personSchema(), "people")
	if err != nil {
		t.Fatalf("GetInstances() returned error: %v", err)
	}
	if len(people) != 1 {
		t.Errorf("Expected 1 instance, got %d", len(people))
	}
}

func TestGetInstancesElementError(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `[{"name": "Ada"}, {"age": 2}]`)
	client := New(WithBaseURL(server.URL))

	_, err := client.GetInstances(context.Background(), personSchema(), "people")
	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ClientError, got %v", err)
	}
	if ce.Type != ErrorTypeTransform {
		t.Errorf("Expected type %s, got %s", ErrorTypeTransform, ce.Type)
	}
}

func TestGetInstancesNotCoercible(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `"text"`)
	client := New(WithBaseURL(server.URL))

	if _, err := client.GetInstances(context.Background(), personSchema(), "people"); !errors.Is(err, ErrNotCoercible) {
		t.Errorf("Expected ErrNotCoercible, got %v", err)
	}
}

type personDTO struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestDecode(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"data": [{"name": "Ada", "age": "36"}]}`)
	client := New(WithBaseURL(server.URL), WithResponseContainer("data"))

	people, err := Decode[[]personDTO](context.Background(), client, "people", WithTransform(personSchema()))
	if err != nil {
		t.Fatalf("Decode() returned error: %v", err)
	}
	if want := []personDTO{{Name: "Ada", Age: 36}}; !reflect.DeepEqual(people, want) {
		t.Errorf("Expected %+v, got %+v", want, people)
	}
}

func TestDecodeMismatch(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, `{"name": 5}`)
	client := New(WithBaseURL(server.URL))

	_, err := Decode[personDTO](context.Background(), client, "people/1")
	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected *ClientError, got %v", err)
	}
	if ce.Type != ErrorTypeDecode {
		t.Errorf("Expected type %s, got %s", ErrorTypeDecode, ce.Type)
	}
}

func TestDecodeValue(t *testing.T) {
	inst := personSchema().MustNew(map[string]any{"name": "Ada", "age": 36})

	var dto personDTO
	if err := DecodeValue(inst, &dto); err != nil {
		t.Fatalf("DecodeValue() returned error: %v", err)
	}
	if want := (personDTO{Name: "Ada", Age: 36}); dto != want {
		t.Errorf("Expected %+v, got %+v", want, dto)
	}
}
