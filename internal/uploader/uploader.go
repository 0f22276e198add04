// Package uploader ships the self-custody candidate image produced by a
// successful biometric capture off the orb: a Pub/Sub notification tells
// downstream identity-verification pipelines a session finished, a Cloud
// Task defers the actual image upload off the broker thread, and the task
// handler pushes the image blob to object storage via supabase-go. None of
// this may run synchronously inside a capture session — the broker must
// never block on network I/O mid-session.
package uploader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"cloud.google.com/go/pubsub"
	supabase "github.com/supabase-community/supabase-go"
	storage_go "github.com/supabase-community/storage-go"
)

// CompletedNotification is published to Pub/Sub once run_post finishes,
// regardless of whether the session produced a capture.
type CompletedNotification struct {
	SessionID string    `json:"session_id"`
	Captured  bool      `json:"captured"`
	TimedOut  bool      `json:"timed_out"`
	At        time.Time `json:"at"`
}

// Notifier publishes session-completed notifications to a Pub/Sub topic.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewNotifier creates the topic if needed and returns a Notifier bound to it.
func NewNotifier(ctx context.Context, project, topicID string) (*Notifier, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("uploader: pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("uploader: topic exists: %w", err)
	}
	if !exists {
		if topic, err = client.CreateTopic(ctx, topicID); err != nil {
			client.Close()
			return nil, fmt.Errorf("uploader: create topic: %w", err)
		}
	}
	topic.EnableMessageOrdering = true
	return &Notifier{client: client, topic: topic}, nil
}

// NotifyCaptureCompleted publishes a CompletedNotification, keyed for
// per-session ordering.
func (n *Notifier) NotifyCaptureCompleted(ctx context.Context, note CompletedNotification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("uploader: marshal notification: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:        payload,
		OrderingKey: note.SessionID,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("uploader: publish notification: %w", err)
	}
	slog.Info("capture completed notification published", "session_id", note.SessionID, "captured", note.Captured)
	return nil
}

// Close releases the Pub/Sub client.
func (n *Notifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}

// uploadTaskBody is the Cloud Task's HTTP request body: the handler on the
// receiving end decodes this and pushes the image to object storage.
type uploadTaskBody struct {
	SessionID string `json:"session_id"`
	ImageB64  string `json:"image_base64"`
}

// TaskDispatcher enqueues self-custody image uploads as Cloud Tasks
// targeting an HTTP endpoint backed by Storage.HandleUploadTask.
type TaskDispatcher struct {
	client     *cloudtasks.Client
	queuePath  string
	handlerURL string
}

// NewTaskDispatcher dials Cloud Tasks. handlerURL is the fully-qualified
// URL of the HTTP endpoint serving Storage.HandleUploadTask.
func NewTaskDispatcher(ctx context.Context, project, location, queueID, handlerURL string) (*TaskDispatcher, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("uploader: cloudtasks client: %w", err)
	}
	queuePath := fmt.Sprintf("projects/%s/locations/%s/queues/%s", project, location, queueID)
	return &TaskDispatcher{client: client, queuePath: queuePath, handlerURL: handlerURL}, nil
}

// EnqueueUpload defers uploading the self-custody candidate image until
// after the capture session's broker loop has exited.
func (d *TaskDispatcher) EnqueueUpload(ctx context.Context, sessionID string, image []byte) error {
	body, err := json.Marshal(uploadTaskBody{
		SessionID: sessionID,
		ImageB64:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return fmt.Errorf("uploader: marshal task body: %w", err)
	}

	req := &taskspb.CreateTaskRequest{
		Parent: d.queuePath,
		Task: &taskspb.Task{
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        d.handlerURL,
					Headers:    map[string]string{"Content-Type": "application/json"},
					Body:       body,
				},
			},
		},
	}
	task, err := d.client.CreateTask(ctx, req)
	if err != nil {
		return fmt.Errorf("uploader: create task: %w", err)
	}
	slog.Info("self-custody upload task enqueued", "session_id", sessionID, "task", task.GetName())
	return nil
}

// Close releases the Cloud Tasks client.
func (d *TaskDispatcher) Close() error {
	return d.client.Close()
}

// Storage uploads self-custody candidate images to Supabase object
// storage, and serves as the Cloud Task handler invoked by TaskDispatcher.
type Storage struct {
	client *supabase.Client
	bucket string
}

// NewStorage builds a Storage client against the given Supabase project.
func NewStorage(url, serviceKey, bucket string) (*Storage, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("uploader: supabase client: %w", err)
	}
	return &Storage{client: client, bucket: bucket}, nil
}

// UploadSelfCustodyImage pushes the image blob to the configured bucket
// under a per-session object key and returns the stored object's path.
func (s *Storage) UploadSelfCustodyImage(sessionID string, image []byte) (string, error) {
	objectPath := fmt.Sprintf("self-custody/%s.jpg", sessionID)
	_, err := s.client.Storage.UploadFile(s.bucket, objectPath, bytes.NewReader(image), storage_go.FileOptions{})
	if err != nil {
		return "", fmt.Errorf("uploader: upload file: %w", err)
	}
	return objectPath, nil
}

// HandleUploadTask is the HTTP handler Cloud Tasks invokes to perform the
// deferred upload. It is intentionally the only place in this package that
// talks to Supabase directly from a request path, so the broker never has
// to.
func (s *Storage) HandleUploadTask(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var body uploadTaskBody
	if err := json.Unmarshal(raw, &body); err != nil {
		http.Error(w, "decode body", http.StatusBadRequest)
		return
	}
	image, err := base64.StdEncoding.DecodeString(body.ImageB64)
	if err != nil {
		http.Error(w, "decode image", http.StatusBadRequest)
		return
	}

	objectPath, err := s.UploadSelfCustodyImage(body.SessionID, image)
	if err != nil {
		slog.Error("self-custody upload failed", "session_id", body.SessionID, "error", err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}
	slog.Info("self-custody image uploaded", "session_id", body.SessionID, "object", objectPath)
	w.WriteHeader(http.StatusNoContent)
}
