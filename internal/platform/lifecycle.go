package platform

import (
	"context"

	"customfields/internal/engine"
)

// EditForm fires the edit-form event for an existing entity.
func (p *Platform) EditForm(typeName string, req *engine.Request) (*engine.Form, error) {
	lc, err := p.lifecycle(typeName)
	if err != nil {
		return nil, err
	}
	return lc.EditForm(req), nil
}

// Save fires the save event. isUpdate is false while an entity is being
// created; the engine ignores such saves.
func (p *Platform) Save(typeName string, req *engine.Request, isUpdate bool) (*engine.SaveResult, error) {
	lc, err := p.lifecycle(typeName)
	if err != nil {
		return nil, err
	}
	return lc.SaveFieldsData(req, isUpdate), nil
}

// Create inserts a new entity and fires the creation save event.
func (p *Platform) Create(ctx context.Context, entities *Entities, typeName, title string, req *engine.Request) (*Entity, *engine.SaveResult, error) {
	if _, err := p.lifecycle(typeName); err != nil {
		return nil, nil, err
	}
	ent, err := entities.Create(ctx, typeName, title)
	if err != nil {
		return nil, nil, err
	}
	req.Ctx = ctx
	req.EntityID = ent.ID
	res, err := p.Save(typeName, req, false)
	return ent, res, err
}
