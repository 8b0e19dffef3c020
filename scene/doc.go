// Package scene loads a YAML tree of host nodes and attaches their behaviors.
//
// It stands in for a host engine's asset loader: Instantiate opens a batch,
// attaches every behavior in document order and closes the batch, so
// references between behaviors resolve regardless of which node comes first.
//
//	nodes:
//	  - id: 7b3e9a52-0c4f-4d8e-9a61-2f5c8d1e4b70
//	    name: spinner
//	    behaviors:
//	      - type: Game.FastSpinner
//	        fields:
//	          - {key: speed, type: number32, scalar: "00000040"}
//	    children:
//	      - name: follower
//	        behaviors:
//	          - type: Game.Follower
//	            fields:
//	              - key: target
//	                type: Game.Spinner
//	                ref: {node: 7b3e9a52-0c4f-4d8e-9a61-2f5c8d1e4b70}
//
// Node ids are UUIDs; nodes without one get a random id.
package scene
