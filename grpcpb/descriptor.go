package grpcpb

import (
	calculator "github.com/xizhibei/go-calculator-rpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	// ServiceName is the fully qualified name of the calculator service.
	ServiceName = "calculator.Calculator"

	protoFileName = "calculator.proto"
)

var (
	fileDesc     protoreflect.FileDescriptor
	requestDesc  protoreflect.MessageDescriptor
	responseDesc protoreflect.MessageDescriptor

	fieldA         protoreflect.FieldDescriptor
	fieldB         protoreflect.FieldDescriptor
	fieldResult    protoreflect.FieldDescriptor
	fieldOperation protoreflect.FieldDescriptor
	fieldMessage   protoreflect.FieldDescriptor
)

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(name),
		Number:   proto.Int32(number),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
	}
}

// calculatorProto mirrors calculator.proto:
//
//	message CalculationRequest { double a = 1; double b = 2; }
//	message CalculationResponse { double result = 1; string operation = 2; string message = 3; }
//	service Calculator { rpc Add/Subtract/Multiply/Divide (CalculationRequest) returns (CalculationResponse); }
func calculatorProto() *descriptorpb.FileDescriptorProto {
	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(calculator.Operations()))
	for _, op := range calculator.Operations() {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(op.Method()),
			InputType:  proto.String(".calculator.CalculationRequest"),
			OutputType: proto.String(".calculator.CalculationResponse"),
		})
	}

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFileName),
		Package: proto.String("calculator"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("CalculationRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("a", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					field("b", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
				},
			},
			{
				Name: proto.String("CalculationResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("result", 1, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					field("operation", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("message", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name:   proto.String("Calculator"),
				Method: methods,
			},
		},
	}
}

func init() {
	fd, err := protodesc.NewFile(calculatorProto(), new(protoregistry.Files))
	if err != nil {
		panic(err)
	}
	fileDesc = fd

	requestDesc = fd.Messages().ByName("CalculationRequest")
	responseDesc = fd.Messages().ByName("CalculationResponse")

	fieldA = requestDesc.Fields().ByName("a")
	fieldB = requestDesc.Fields().ByName("b")
	fieldResult = responseDesc.Fields().ByName("result")
	fieldOperation = responseDesc.Fields().ByName("operation")
	fieldMessage = responseDesc.Fields().ByName("message")
}

// FileDescriptor returns the descriptor of calculator.proto.
func FileDescriptor() protoreflect.FileDescriptor {
	return fileDesc
}

// FullMethod returns the gRPC method path of op, e.g. "/calculator.Calculator/Add".
func FullMethod(op calculator.Operation) string {
	return "/" + ServiceName + "/" + op.Method()
}

func newRequestMessage() *dynamicpb.Message {
	return dynamicpb.NewMessage(requestDesc)
}

func newResponseMessage() *dynamicpb.Message {
	return dynamicpb.NewMessage(responseDesc)
}

func encodeRequest(req *calculator.CalculationRequest) *dynamicpb.Message {
	m := newRequestMessage()
	m.Set(fieldA, protoreflect.ValueOfFloat64(req.A))
	m.Set(fieldB, protoreflect.ValueOfFloat64(req.B))
	return m
}

func decodeRequest(m *dynamicpb.Message) *calculator.CalculationRequest {
	return &calculator.CalculationRequest{
		A: m.Get(fieldA).Float(),
		B: m.Get(fieldB).Float(),
	}
}

func encodeResponse(res *calculator.CalculationResponse) *dynamicpb.Message {
	m := newResponseMessage()
	m.Set(fieldResult, protoreflect.ValueOfFloat64(res.Result))
	m.Set(fieldOperation, protoreflect.ValueOfString(res.Operation))
	m.Set(fieldMessage, protoreflect.ValueOfString(res.Message))
	return m
}

func decodeResponse(m *dynamicpb.Message) *calculator.CalculationResponse {
	return &calculator.CalculationResponse{
		Result:    m.Get(fieldResult).Float(),
		Operation: m.Get(fieldOperation).String(),
		Message:   m.Get(fieldMessage).String(),
	}
}
