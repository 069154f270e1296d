package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"join","protocol_version":"1","token":"tok","room":"demo","identity":"user-1"}`))
	if err != nil {
		t.Fatalf("decode join: %v", err)
	}
	join, ok := msg.(ClientJoin)
	if !ok {
		t.Fatalf("decoded type = %T", msg)
	}
	if join.Room != "demo" || join.Token != "tok" || join.Identity != "user-1" {
		t.Fatalf("join = %+v", join)
	}

	msg, err = DecodeClientMessage([]byte(`{"type":"data","payload":{"type":"text_input","text":"hi"}}`))
	if err != nil {
		t.Fatalf("decode data: %v", err)
	}
	data := msg.(ClientData)
	if typ, _ := PayloadType(data.Payload); typ != "text_input" {
		t.Fatalf("payload type = %q", typ)
	}

	if _, err := DecodeClientMessage([]byte(`{"type":"leave"}`)); err != nil {
		t.Fatalf("decode leave: %v", err)
	}
}

func TestDecodeClientMessageErrors(t *testing.T) {
	cases := []struct {
		name     string
		frame    string
		wantCode string
	}{
		{"not json", `{{{`, "invalid_json"},
		{"missing type", `{"token":"x"}`, "bad_request"},
		{"unknown type", `{"type":"teleport"}`, "invalid_action"},
		{"publish without track id", `{"type":"publish_track","track":{"kind":"audio"}}`, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tc.frame))
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("error = %v, want DecodeError", err)
			}
			if de.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", de.Code, tc.wantCode)
			}
		})
	}
}

func TestDecodeServerMessage(t *testing.T) {
	msg, err := DecodeServerMessage([]byte(`{"type":"joined","room":"demo","session_id":"s1","local":{"identity":"user-1"},"participants":[{"identity":"cloudy-agent","name":"Cloudy"}]}`))
	if err != nil {
		t.Fatalf("decode joined: %v", err)
	}
	joined := msg.(ServerJoined)
	if joined.Room != "demo" || len(joined.Participants) != 1 {
		t.Fatalf("joined = %+v", joined)
	}

	msg, err = DecodeServerMessage([]byte(`{"type":"error","code":"unauthorized","message":"nope"}`))
	if err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if se := msg.(ServerError); se.Code != "unauthorized" {
		t.Fatalf("server error = %+v", se)
	}

	if _, err := DecodeServerMessage([]byte(`{"type":"wat"}`)); err == nil {
		t.Fatal("unknown server frame should fail")
	}
}

func TestPayloadType(t *testing.T) {
	if typ, ok := PayloadType(json.RawMessage(`{"type":"ai_response","text":"x"}`)); !ok || typ != DataTypeAIResponse {
		t.Fatalf("type = %q ok = %v", typ, ok)
	}
	if _, ok := PayloadType(json.RawMessage(`"plain string"`)); ok {
		t.Fatal("non-object payload should not have a type")
	}
	if _, ok := PayloadType(json.RawMessage(`{"text":"missing"}`)); ok {
		t.Fatal("payload without type tag should not have a type")
	}
	if _, ok := PayloadType(json.RawMessage(`not json`)); ok {
		t.Fatal("invalid JSON should not have a type")
	}
}
