package caller

// approvalsABI covers the entry points of BentoBox, lending pairs and EIP-2612 tokens that
// consume typed-data approvals.
const approvalsABI = `[
	{"type":"function","name":"nonces","stateMutability":"view",
	 "inputs":[{"name":"owner","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"DOMAIN_SEPARATOR","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"setMasterContractApproval","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"user","type":"address"},
		{"name":"masterContract","type":"address"},
		{"name":"approved","type":"bool"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"setApproval","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"user","type":"address"},
		{"name":"approved","type":"bool"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}],
	 "outputs":[]},
	{"type":"function","name":"permitToken","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"token","type":"address"},
		{"name":"from","type":"address"},
		{"name":"to","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"deadline","type":"uint256"},
		{"name":"v","type":"uint8"},
		{"name":"r","type":"bytes32"},
		{"name":"s","type":"bytes32"}],
	 "outputs":[]}
]`
