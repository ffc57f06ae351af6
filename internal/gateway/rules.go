package gateway

import "github.com/munaimtahir/keystone/pkg/api/client"

// CanDeploy gates deploy and update: the bound repository must be prepared
// and the application must not already be moving.
func CanDeploy(app client.Application) bool {
	return app.RepoPreparedForDeployment && !app.Status.Transitional()
}

// CanRollback ignores the prepared flag; a rollback targets a previously
// built artifact.
func CanRollback(app client.Application) bool {
	return !app.Status.Transitional()
}

// CanTrigger dispatches to the rule for kind.
func CanTrigger(app client.Application, kind client.DeploymentType) bool {
	switch kind {
	case client.DeployFresh, client.DeployUpdate:
		return CanDeploy(app)
	case client.DeployRollback:
		return CanRollback(app)
	}
	return false
}

// CanStop allows stopping any application that is not mid-deployment.
func CanStop(app client.Application) bool {
	return !app.Status.Transitional()
}

// CanInspect refuses to start a second inspection.
func CanInspect(repo client.Repository) bool {
	return repo.InspectionStatus != client.InspectionInspecting
}

// CanPrepare requires a finished inspection.
func CanPrepare(repo client.Repository) bool {
	return repo.InspectionStatus.AllowsPrepare()
}
