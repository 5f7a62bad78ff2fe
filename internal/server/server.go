// Package server implements the gRPC JoinService
package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/parajoin/internal/editor"
	"github.com/nainya/parajoin/internal/lease"
	"github.com/nainya/parajoin/pkg/document"
	"github.com/nainya/parajoin/pkg/join"
	"github.com/nainya/parajoin/pkg/repo"
)

// Server implements JoinServiceServer on top of an editor
type Server struct {
	editor    *editor.Editor
	startTime time.Time
}

// NewServer creates a new gRPC server instance
func NewServer(ed *editor.Editor) *Server {
	return &Server{
		editor:    ed,
		startTime: time.Now(),
	}
}

// ========== Edits ==========

func (s *Server) RebuildAll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := docID(req)
	if err != nil {
		return nil, err
	}

	sum, err := s.editor.Rebuild(ctx, id)
	if err != nil {
		return nil, toStatus(err, "failed to rebuild")
	}

	return structpb.NewStruct(map[string]interface{}{
		"doc":        id,
		"paragraphs": sum.Paragraphs,
		"runs":       sum.Runs,
		"normalized": sum.Normalized,
		"changed":    sum.Changed,
	})
}

func (s *Server) ApplyToggle(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := docID(req)
	if err != nil {
		return nil, err
	}
	key, err := paragraphKey(req)
	if err != nil {
		return nil, err
	}
	on, err := joinFlag(req)
	if err != nil {
		return nil, err
	}

	ch, err := s.editor.Toggle(ctx, id, key, on)
	if err != nil {
		return nil, toStatus(err, "failed to toggle")
	}

	bases := make([]interface{}, len(ch.Bases))
	for i, b := range ch.Bases {
		bases[i] = b.String()
	}
	return structpb.NewStruct(map[string]interface{}{
		"doc":      id,
		"page":     key.Page,
		"para":     key.Para,
		"no_op":    ch.NoOp,
		"rejected": ch.Rejected,
		"bases":    bases,
		"changed":  ch.Changed,
	})
}

func (s *Server) AlignStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := docID(req)
	if err != nil {
		return nil, err
	}

	n, err := s.editor.Align(ctx, id)
	if err != nil {
		return nil, toStatus(err, "failed to align")
	}

	return structpb.NewStruct(map[string]interface{}{
		"doc":     id,
		"aligned": n,
	})
}

// ========== Queries ==========

func (s *Server) GetParagraph(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := docID(req)
	if err != nil {
		return nil, err
	}
	key, err := paragraphKey(req)
	if err != nil {
		return nil, err
	}

	p, err := s.editor.Paragraph(ctx, id, key)
	if err != nil {
		return nil, toStatus(err, "failed to get paragraph")
	}

	bbox := make([]interface{}, len(p.BBox))
	for i, v := range p.BBox {
		bbox[i] = v
	}
	joinValue := 0
	if p.Join {
		joinValue = 1
	}
	return structpb.NewStruct(map[string]interface{}{
		"page":         key.Page,
		"para":         key.Para,
		"id":           p.ID,
		"page_number":  p.PageNumber,
		"order":        p.Order,
		"column_order": p.ColumnOrder,
		"bbox":         bbox,
		"block_tag":    p.BlockTag,
		"join":         joinValue,
		"src_text":     p.SrcText,
		"src_joined":   p.SrcJoined,
		"src_replaced": p.SrcReplaced,
		"trans_status": string(p.TransStatus),
		"trans_text":   p.TransText,
		"trans_auto":   p.TransAuto,
		"modified_at":  p.ModifiedAt,
	})
}

func (s *Server) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := docID(req)
	if err != nil {
		return nil, err
	}

	st, err := s.editor.Stats(ctx, id)
	if err != nil {
		return nil, toStatus(err, "failed to read stats")
	}

	return structpb.NewStruct(map[string]interface{}{
		"doc":           id,
		"pages":         st.Pages,
		"paragraphs":    st.Paragraphs,
		"bases":         st.Bases,
		"continuations": st.Continuations,
		"trans_status_counts": map[string]interface{}{
			"none":  st.Counts.None,
			"auto":  st.Counts.Auto,
			"draft": st.Counts.Draft,
			"fixed": st.Counts.Fixed,
		},
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// ========== Request helpers ==========

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	v, ok := req.GetFields()[name]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	}
	return ""
}

func docID(req *structpb.Struct) (string, error) {
	id := stringField(req, "doc")
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "doc is required")
	}
	return id, nil
}

func paragraphKey(req *structpb.Struct) (document.Key, error) {
	key := document.Key{Page: stringField(req, "page"), Para: stringField(req, "para")}
	if key.Page == "" || key.Para == "" {
		return key, status.Error(codes.InvalidArgument, "page and para are required")
	}
	return key, nil
}

// joinFlag accepts join as a bool or as 0/1
func joinFlag(req *structpb.Struct) (bool, error) {
	v, ok := req.GetFields()["join"]
	if !ok {
		return false, status.Error(codes.InvalidArgument, "join is required")
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_NumberValue:
		switch k.NumberValue {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return false, status.Errorf(codes.InvalidArgument, "join must be 0 or 1, got %v", v.AsInterface())
}

// toStatus maps domain errors onto gRPC codes
func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, join.ErrParagraphNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case errors.Is(err, repo.ErrInvalidID):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	case errors.Is(err, lease.ErrHeld):
		return status.Errorf(codes.Aborted, "%s: %v", msg, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", msg, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", msg, err)
	}
	return status.Errorf(codes.Internal, "%s: %v", msg, err)
}
