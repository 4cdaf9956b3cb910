// Package notify provides notification services for run lifecycle events.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: Notification event with type, message, and metadata
//   - EventType: Type of event (started, published, discovered, etc.)
//
// Implementations:
//   - SlackNotifier: Sends notifications to Slack webhooks
//   - WebhookNotifier: Sends notifications to generic webhooks
//   - LogNotifier: Logs notifications (for testing/debugging)
//   - MultiNotifier: Combines multiple notifiers
//   - NopNotifier: No-op notifier (for testing)
//
// Example usage:
//
//	notifier := notify.NewSlackNotifier(webhookURL,
//	    notify.WithSlackChannel("#demo-runs"),
//	    notify.WithSlackUsername("demoflow-bot"),
//	)
//	err := notifier.Notify(ctx, notify.Event{
//	    Type:    notify.EventURLDiscovered,
//	    Message: "Accounts live at https://abcd1234.gradio.live",
//	})
package notify
