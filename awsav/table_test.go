package awsav

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/andreyvit/avcodec"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient keeps items of a single owner/name keyed table and serves
// query pages of pageSize items.
type fakeClient struct {
	items    []avcodec.Item
	pageSize int
	queries  int
}

func itemKey(item avcodec.Item) string {
	owner, _ := item["owner"].AsString()
	name, _ := item["name"].AsString()
	return owner + "/" + name
}

func (c *fakeClient) find(key avcodec.Item) int {
	return slices.IndexFunc(c.items, func(item avcodec.Item) bool {
		return itemKey(item) == itemKey(key)
	})
}

func (c *fakeClient) GetItem(ctx context.Context, params *ddb.GetItemInput, optFns ...func(*ddb.Options)) (*ddb.GetItemOutput, error) {
	key := must(ItemFromSDK(params.Key))
	if i := c.find(key); i >= 0 {
		return &ddb.GetItemOutput{Item: ItemToSDK(c.items[i])}, nil
	}
	return &ddb.GetItemOutput{}, nil
}

func (c *fakeClient) PutItem(ctx context.Context, params *ddb.PutItemInput, optFns ...func(*ddb.Options)) (*ddb.PutItemOutput, error) {
	item := must(ItemFromSDK(params.Item))
	if i := c.find(item); i >= 0 {
		c.items[i] = item
	} else {
		c.items = append(c.items, item)
		slices.SortFunc(c.items, func(a, b avcodec.Item) int {
			return strings.Compare(itemKey(a), itemKey(b))
		})
	}
	return &ddb.PutItemOutput{}, nil
}

func (c *fakeClient) DeleteItem(ctx context.Context, params *ddb.DeleteItemInput, optFns ...func(*ddb.Options)) (*ddb.DeleteItemOutput, error) {
	key := must(ItemFromSDK(params.Key))
	if i := c.find(key); i >= 0 {
		c.items = slices.Delete(c.items, i, i+1)
	}
	return &ddb.DeleteItemOutput{}, nil
}

func (c *fakeClient) Query(ctx context.Context, params *ddb.QueryInput, optFns ...func(*ddb.Options)) (*ddb.QueryOutput, error) {
	c.queries++
	values := must(ItemFromSDK(params.ExpressionAttributeValues))
	var matched []avcodec.Item
	for _, item := range c.items {
		ok := true
		for nk, name := range params.ExpressionAttributeNames {
			if !item[name].Equal(values[":"+strings.TrimPrefix(nk, "#")]) {
				ok = false
			}
		}
		if ok {
			matched = append(matched, item)
		}
	}
	if params.ExclusiveStartKey != nil {
		start := itemKey(must(ItemFromSDK(params.ExclusiveStartKey)))
		i := slices.IndexFunc(matched, func(item avcodec.Item) bool { return itemKey(item) == start })
		matched = matched[i+1:]
	}
	out := &ddb.QueryOutput{}
	if len(matched) > c.pageSize {
		matched = matched[:c.pageSize]
		last := matched[len(matched)-1]
		out.LastEvaluatedKey = ItemToSDK(avcodec.Item{"owner": last["owner"], "name": last["name"]})
	}
	for _, item := range matched {
		out.Items = append(out.Items, ItemToSDK(item))
	}
	out.Count = int32(len(matched))
	return out, nil
}

func TestQueryInput(t *testing.T) {
	kim, age := "kim", 3
	input := must(QueryInput("pets", PetFilter{Owner: &kim, Age: &age}))
	deepEqual(t, *input.TableName, "pets")
	deepEqual(t, *input.KeyConditionExpression, "#k0 = :k0 AND #k1 = :k1")
	deepEqual(t, input.ExpressionAttributeNames, map[string]string{"#k0": "owner", "#k1": "age"})
	deepEqual(t, input.ExpressionAttributeValues, map[string]types.AttributeValue{
		":k0": &types.AttributeValueMemberS{Value: "kim"},
		":k1": &types.AttributeValueMemberN{Value: "3"},
	}, sdkOpts)
}

func TestTable(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{pageSize: 1}
	tbl := &Table{Client: client, Name: "pets"}

	rex := Pet{Owner: "kim", Name: "Rex", Age: 3}
	bo := Pet{Owner: "kim", Name: "Bo", Age: 5}
	mx := Pet{Owner: "al", Name: "Max", Age: 3}
	for _, p := range []Pet{rex, bo, mx} {
		ensure(tbl.Put(ctx, p))
	}

	var got Pet
	deepEqual(t, must(tbl.Get(ctx, PetKey{"kim", "Rex"}, &got)), true)
	deepEqual(t, got, rex)
	deepEqual(t, must(tbl.Get(ctx, PetKey{"kim", "Max"}, &got)), false)

	kim := "kim"
	deepEqual(t, must(QueryAll[Pet](ctx, tbl, PetFilter{Owner: &kim})), []Pet{bo, rex})
	deepEqual(t, client.queries, 2)

	ensure(tbl.Delete(ctx, PetKey{"kim", "Bo"}))
	deepEqual(t, must(QueryAll[Pet](ctx, tbl, PetFilter{Owner: &kim})), []Pet{rex})
}
