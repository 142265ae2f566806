package ragdoll

import "github.com/milk9111/blendrig/skeleton"

// Ragdoll is a physics-driven stand-in for a skeleton.
//
// While a blend tree samples the ragdoll the simulation owns the pose and the
// ragdoll is marked dirty every tick. Otherwise the animator pushes its pose
// back with MatchPose so the bodies are ready to take over.
type Ragdoll interface {
	// PoseFromSimulation returns a pose whose global matrices come from the
	// simulated bodies.
	PoseFromSimulation() skeleton.Pose
	// MatchPose moves the bodies to pose and sets their velocities from the
	// change since the previous match.
	MatchPose(pose *skeleton.Pose)
	Dirty() bool
	SetDirty(dirty bool)
	// Close removes the ragdoll from its simulation.
	Close()
}
