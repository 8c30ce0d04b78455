package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadProcess = "lead.process"

const TaskConversationTemplateStep = "conversation.template_step"

const TaskConversationReply = "conversation.reply"

const TaskHandoverDeliver = "handover.deliver"

const TaskCoordinationDispatch = "coordination.dispatch"

type LeadProcessPayload struct {
	LeadID string `json:"leadId"`
}

type TemplateStepPayload struct {
	ConversationID string `json:"conversationId"`
	Stage          int    `json:"stage"`
}

type ReplyPayload struct {
	ConversationID string `json:"conversationId"`
}

type HandoverDeliverPayload struct {
	LeadID string `json:"leadId"`
	Reason string `json:"reason"`
}

type CoordinationDispatchPayload struct {
	LeadID  string `json:"leadId"`
	AgentID string `json:"agentId"`
	Channel string `json:"channel"`
}

func NewLeadProcessTask(payload LeadProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadProcess, data), nil
}

func ParseLeadProcessPayload(task *asynq.Task) (LeadProcessPayload, error) {
	var payload LeadProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadProcessPayload{}, err
	}
	return payload, nil
}

func NewTemplateStepTask(payload TemplateStepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversationTemplateStep, data), nil
}

func ParseTemplateStepPayload(task *asynq.Task) (TemplateStepPayload, error) {
	var payload TemplateStepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TemplateStepPayload{}, err
	}
	return payload, nil
}

func NewReplyTask(payload ReplyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConversationReply, data), nil
}

func ParseReplyPayload(task *asynq.Task) (ReplyPayload, error) {
	var payload ReplyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReplyPayload{}, err
	}
	return payload, nil
}

func NewHandoverDeliverTask(payload HandoverDeliverPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHandoverDeliver, data), nil
}

func ParseHandoverDeliverPayload(task *asynq.Task) (HandoverDeliverPayload, error) {
	var payload HandoverDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return HandoverDeliverPayload{}, err
	}
	return payload, nil
}

func NewCoordinationDispatchTask(payload CoordinationDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCoordinationDispatch, data), nil
}

func ParseCoordinationDispatchPayload(task *asynq.Task) (CoordinationDispatchPayload, error) {
	var payload CoordinationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CoordinationDispatchPayload{}, err
	}
	return payload, nil
}
