package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Object is one document of a manifest file.
type Object struct {
	APIVersion string
	Kind       string
	Name       string
	Namespace  string

	raw map[string]interface{}
}

// Load reads every non-empty YAML document of a manifest file.
func Load(path string) ([]Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	objects, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return objects, nil
}

// Parse decodes a multi-document YAML stream.
func Parse(data []byte) ([]Object, error) {
	var objects []Object

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for i := 0; ; i++ {
		var doc map[string]interface{}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if len(doc) == 0 {
			continue
		}

		obj, err := newObject(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		objects = append(objects, obj)
	}

	if len(objects) == 0 {
		return nil, errors.New("no objects defined")
	}
	return objects, nil
}

func newObject(doc map[string]interface{}) (Object, error) {
	obj := Object{raw: doc}
	obj.APIVersion, _ = doc["apiVersion"].(string)
	obj.Kind, _ = doc["kind"].(string)

	if meta, ok := doc["metadata"].(map[string]interface{}); ok {
		obj.Name, _ = meta["name"].(string)
		obj.Namespace, _ = meta["namespace"].(string)
	}

	switch {
	case obj.APIVersion == "":
		return obj, errors.New("missing apiVersion")
	case obj.Kind == "":
		return obj, errors.New("missing kind")
	case obj.Name == "":
		return obj, fmt.Errorf("%s without metadata.name", obj.Kind)
	}
	return obj, nil
}

// Unstructured converts the document into an object the API machinery understands.
// The round trip through JSON normalises YAML scalars (int, bool) into JSON types.
func (o Object) Unstructured() (*unstructured.Unstructured, error) {
	data, err := json.Marshal(o.raw)
	if err != nil {
		return nil, err
	}
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return u, nil
}

// Find returns the first object of the given kind and name.
func Find(objects []Object, kind, name string) (Object, bool) {
	for _, o := range objects {
		if o.Kind == kind && o.Name == name {
			return o, true
		}
	}
	return Object{}, false
}
