package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/research-virtualfortknox/msb-client-websocket-go/client"
	"github.com/research-virtualfortknox/msb-client-websocket-go/dataformat"
	"github.com/research-virtualfortknox/msb-client-websocket-go/selfdescription"
)

const deviceFormat = `{
	"dataObject": {"type": "object", "$ref": "#/definitions/Device"},
	"Device": {
		"type": "object",
		"properties": {
			"value1": {"type": "number", "format": "float"},
			"value2": {"type": "number", "format": "float"},
			"value3": {"type": "number", "format": "float"}
		}
	}
}`

const deviceArrayFormat = `{
	"dataObject": {"type": "array", "items": {"$ref": "#/definitions/Device"}},
	"Device": {
		"type": "object",
		"properties": {
			"value1": {"type": "number", "format": "float"},
			"value2": {"type": "number", "format": "double"},
			"value3": {"type": "integer", "format": "int32"},
			"submodules": {"type": "array", "items": {"$ref": "#/definitions/Module"}}
		}
	},
	"Module": {
		"type": "object",
		"properties": {
			"modname": {"type": "string"}
		}
	}
}`

func parseFormat(literal string) (*dataformat.DataFormat, error) {
	var df dataformat.DataFormat
	if err := json.Unmarshal([]byte(literal), &df); err != nil {
		return nil, fmt.Errorf("parse data format: %w", err)
	}
	return &df, nil
}

// declare adds the sample configuration parameters, events and functions.
func declare(c *client.Client, logger *slog.Logger) error {
	steps := []func() error{
		func() error { return c.AddConfigParameter("testParam1", true, "boolean") },
		func() error { return c.AddConfigParameter("testParam2", "StringValue", "string") },
		func() error { return c.AddConfigParameter("testParam3", 1000, "int32") },

		func() error {
			return c.AddEvent("SIMPLE_EVENT1", "Simple event 1", "Description simple event 1", "string", "LOW", false)
		},
		func() error {
			return c.AddEvent("SIMPLE_EVENT2", "Simple event 2", "Description simple event 2", "int64", 0, true)
		},
		func() error {
			return c.AddEvent("SIMPLE_EVENT3", "Simple event 3", "Description simple event 3", "", 0, false)
		},
		func() error {
			return c.AddEvent("SIMPLE_EVENT4", "Simple event 4", "Description simple event 4",
				`{"type": "array", "items": {"type": "integer", "format": "int32"}}`, 0, true)
		},
		func() error {
			return c.AddEventSpec(selfdescription.EventSpec{
				EventID: "EVENT1", Name: "Event 1", Description: "Description for Event 1",
				DataType: "string", Priority: "MEDIUM",
			})
		},
		func() error {
			return c.AddEventSpec(selfdescription.EventSpec{
				EventID: "EVENT2", Name: "Event 2", Description: "Description for Event 2",
				DataType: "float", Priority: 1,
			})
		},
		func() error {
			df, err := parseFormat(deviceFormat)
			if err != nil {
				return err
			}
			return c.AddEventSpec(selfdescription.EventSpec{
				EventID: "EVENT3", Name: "Event 3", Description: "Description for Event 3",
				DataFormat: df, Priority: 1,
			})
		},
		func() error {
			return c.AddEventSpec(selfdescription.EventSpec{
				EventID: "EVENT4", Name: "Event 4", Description: "Description for Event 4",
				DataType: "int32", IsArray: true, Priority: "MEDIUM",
			})
		},
		func() error {
			df, err := parseFormat(deviceArrayFormat)
			if err != nil {
				return err
			}
			return c.AddEventSpec(selfdescription.EventSpec{
				EventID: "EVENT5", Name: "Event 5", Description: "Description for Event 5",
				DataFormat: df, Priority: 1,
			})
		},

		func() error {
			c.CreateComplexDataFormat("ComplexObject1")
			c.CreateComplexDataFormat("ComplexObject2")
			if err := c.AddProperty("ComplexObject2", "superprop", "int32", true); err != nil {
				return err
			}
			if err := c.AddProperty("ComplexObject1", "megaprop", "ComplexObject2", false); err != nil {
				return err
			}
			return c.AddEvent("COMPLEX_EVENT", "Complex event", "Description complex event", "ComplexObject1", "LOW", false)
		},

		func() error {
			return c.AddFunction("function1", "Function 1", "Description for Function 1", "string",
				printParams(logger, "function1"), false, nil)
		},
		func() error {
			return c.AddFunctionSpec(selfdescription.FunctionSpec{
				FunctionID: "function2", Name: "Function 2", Description: "Description for Function 2",
				DataType: "float", Handler: printParams(logger, "function2"),
			})
		},
		func() error {
			df, err := parseFormat(deviceFormat)
			if err != nil {
				return err
			}
			return c.AddFunctionSpec(selfdescription.FunctionSpec{
				FunctionID: "function3", Name: "Function 3", Description: "Description for Function 3",
				DataFormat: df, Handler: printParams(logger, "function3"),
			})
		},
		func() error {
			return c.AddFunction("function4", "Function 4", "Description for Function 4",
				"ComplexObject1", printParams(logger, "function4"), true, []string{"EVENT1", "EVENT2"})
		},
		func() error {
			return c.AddFunction("functionWithResponse", "Function with Response",
				"Description for Function with Response", "string", respond(c, logger), false, []string{"EVENT1"})
		},
		func() error {
			return c.AddFunction("function5", "Function 5", "Description for Function 5", "",
				func(map[string]any) {
					v, _ := c.ConfigParameter("testParam3")
					logger.Info("testParam3", "value", v)
				}, false, nil)
		},
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func printParams(logger *slog.Logger, functionID string) selfdescription.Handler {
	return func(params map[string]any) {
		logger.Info("Function called", "function_id", functionID, "params", params)
	}
}

// respond answers with EVENT1, echoing the call's payload and correlation id.
func respond(c *client.Client, logger *slog.Logger) selfdescription.Handler {
	return func(params map[string]any) {
		correlationID, _ := params["correlationId"].(string)
		logger.Info("Function called, sending response", "function_id", "functionWithResponse",
			"correlation_id", correlationID)
		if err := c.Publish("EVENT1",
			client.WithValue(fmt.Sprint(params["dataObject"])),
			client.WithCorrelationID(correlationID),
		); err != nil {
			logger.Error("Response event failed", "error", err)
		}
	}
}
